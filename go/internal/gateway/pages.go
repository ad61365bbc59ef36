package gateway

import "net/http"

// Minimal built-in pages behind the QR join URLs. They are deliberately
// plain; a venue wanting a branded display can point any websocket client at
// /ws instead.

const displayPage = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Timekeeper</title>
<style>
body { background: #000; color: #fff; font-family: sans-serif; display: flex; flex-direction: column; align-items: center; justify-content: center; height: 100vh; margin: 0; }
#time { font-size: 22vw; font-variant-numeric: tabular-nums; }
#time.over { color: #f33; }
#phase { font-size: 3vw; color: #888; text-transform: uppercase; }
</style>
</head>
<body>
<div id="time">--:--</div>
<div id="phase"></div>
<script>
var remaining = 0, phase = "idle", last = Date.now();
function fmt(ms) {
  var s = Math.max(0, Math.floor(ms / 1000));
  return Math.floor(s / 60) + ":" + String(s % 60).padStart(2, "0");
}
function render() {
  var el = document.getElementById("time");
  el.textContent = fmt(remaining);
  el.className = phase === "expired" ? "over" : "";
  document.getElementById("phase").textContent = phase;
}
function apply(st) { remaining = st.remaining_ms; phase = st.phase; last = Date.now(); render(); }
function connect() {
  var session = new URLSearchParams(location.search).get("session") || "";
  var ws = new WebSocket("ws://" + location.host + "/ws?role=viewer&session=" + session);
  ws.onmessage = function(m) {
    var f = JSON.parse(m.data);
    if (f.type === "snapshot") apply(f.snapshot);
    if (f.type === "event") {
      if (f.stale) { fetch("/api/snapshot?session=" + session).then(r => r.json()).then(apply); }
      else apply(f.event);
    }
  };
  ws.onclose = function() { setTimeout(connect, 1000); };
}
setInterval(function() {
  if (phase !== "running") return;
  var now = Date.now();
  remaining -= now - last;
  last = now;
  render();
}, 250);
connect();
</script>
</body>
</html>`

const adminPage = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Timekeeper admin</title>
<style>
body { background: #111; color: #fff; font-family: sans-serif; display: flex; flex-direction: column; align-items: center; justify-content: center; height: 100vh; margin: 0; gap: 2vh; }
#time { font-size: 16vw; font-variant-numeric: tabular-nums; }
#time.over { color: #f33; }
button { font-size: 4vw; padding: 1vh 3vw; }
</style>
</head>
<body>
<div id="time">--:--</div>
<div>
<button onclick="send({action:'start'})">Start</button>
<button onclick="send({action:'pause'})">Pause</button>
<button onclick="send({action:'resume'})">Resume</button>
<button onclick="send({action:'reset'})">Reset</button>
</div>
<div>
<button onclick="send({action:'adjust', delta_ms: 60000})">+1 min</button>
<button onclick="send({action:'adjust', delta_ms: -60000})">-1 min</button>
<button onclick="send({action:'manual_bell', rings: 1})">Bell</button>
</div>
<script>
var ws, remaining = 0, phase = "idle", last = Date.now();
function fmt(ms) {
  var s = Math.max(0, Math.floor(ms / 1000));
  return Math.floor(s / 60) + ":" + String(s % 60).padStart(2, "0");
}
function render() {
  var el = document.getElementById("time");
  el.textContent = fmt(remaining);
  el.className = phase === "expired" ? "over" : "";
}
function apply(st) { remaining = st.remaining_ms; phase = st.phase; last = Date.now(); render(); }
function send(cmd) { if (ws && ws.readyState === 1) ws.send(JSON.stringify(cmd)); }
function connect() {
  var session = new URLSearchParams(location.search).get("session") || "";
  ws = new WebSocket("ws://" + location.host + "/ws?role=controller&session=" + session);
  ws.onmessage = function(m) {
    var f = JSON.parse(m.data);
    if (f.type === "snapshot") apply(f.snapshot);
    if (f.type === "event") {
      if (f.stale) { fetch("/api/snapshot?session=" + session).then(r => r.json()).then(apply); }
      else apply(f.event);
    }
  };
  ws.onclose = function() { setTimeout(connect, 1000); };
}
setInterval(function() {
  if (phase !== "running") return;
  var now = Date.now();
  remaining -= now - last;
  last = now;
  render();
}, 250);
connect();
</script>
</body>
</html>`

// HandleDisplay serves the built-in projector view.
func (h *Handler) HandleDisplay(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(displayPage))
}

// HandleAdmin serves the built-in controller view.
func (h *Handler) HandleAdmin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(adminPage))
}
