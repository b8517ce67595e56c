package web

import "html/template"

type pageData struct {
	ID     string
	Width  int
	Height int
}

var pageTemplate = template.Must(template.New("page").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>arena {{.ID}}</title>
<style>
body { background:#1c1f2e; font-family:sans-serif; margin:0; padding:12px; color:#eceff0; }
#board { cursor:pointer; display:block; }
#bar { margin:8px 0; display:flex; gap:8px; align-items:center; flex-wrap:wrap; }
#log { font-family:monospace; font-size:12px; white-space:pre; max-height:200px; overflow:auto; }
</style>
</head>
<body>
<div id="bar">
  <button id="undo">Undo</button>
  <label><input type="checkbox" id="white-enabled"> white agent</label>
  <label><input type="checkbox" id="black-enabled"> black agent</label>
  <label>promote to
    <select id="promotion">
      <option value="">queen</option>
      <option value="rook">rook</option>
      <option value="bishop">bishop</option>
      <option value="knight">knight</option>
      <option value="cancel">cancel</option>
    </select>
  </label>
  <button id="resign-white">White resigns</button>
  <button id="resign-black">Black resigns</button>
  <span id="status"></span>
</div>
<img id="board" src="/board.png" width="{{.Width}}" height="{{.Height}}" alt="board">
<div id="log"></div>
<script>
const img = document.getElementById('board');
const statusEl = document.getElementById('status');
const logEl = document.getElementById('log');

function post(path, body) {
  return fetch(path, {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify(body || {})})
    .then(r => r.json()).then(show);
}
function refresh() { img.src = '/board.png?t=' + Date.now(); }
function show(resp) {
  const st = resp.state || resp;
  if (!st || !st.phase) { return; }
  let text = st.phase + ' ' + st.turn;
  if (st.result) { text += ' ' + st.result.outcome + ' (' + st.result.reason + ')'; }
  if (resp.error) { text += ' - ' + resp.error; }
  statusEl.textContent = text;
  for (const a of st.agents || []) {
    const box = document.getElementById((a.color === 0 ? 'white' : 'black') + '-enabled');
    if (box) { box.checked = a.enabled; }
  }
  refresh();
}

img.addEventListener('mousedown', ev => {
  ev.preventDefault();
  const scale = img.naturalWidth / img.clientWidth || 1;
  post('/click', {x: ev.offsetX * scale, y: ev.offsetY * scale, buttons: ev.buttons,
    promotion: document.getElementById('promotion').value});
});
img.addEventListener('contextmenu', ev => ev.preventDefault());
document.getElementById('undo').onclick = () => post('/undo');
document.getElementById('resign-white').onclick = () => post('/resign', {color: 'white'});
document.getElementById('resign-black').onclick = () => post('/resign', {color: 'black'});
for (const c of ['white', 'black']) {
  document.getElementById(c + '-enabled').onchange = ev => post('/agents/' + c, {enabled: ev.target.checked});
}

fetch('/state').then(r => r.json()).then(show);
const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
const ws = new WebSocket(proto + location.host + '/events');
ws.onmessage = m => {
  const ev = JSON.parse(m.data);
  logEl.textContent = ev.kind + ' ' + (ev.color || '') + ' ' + (ev.san || ev.move || ev.error || '') + '\n' + logEl.textContent;
  fetch('/state').then(r => r.json()).then(show);
};
</script>
</body>
</html>
`))
