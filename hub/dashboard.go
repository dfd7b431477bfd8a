package hub

// dashboardHTML is the static observer page. It polls the roster query
// endpoint; the websocket stream stays reserved for peers and live
// observers.
const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>pulsehub</title>
<style>
  body { font-family: ui-monospace, monospace; margin: 2rem; background: #111; color: #ddd; }
  h1 { font-size: 1.2rem; }
  table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
  th, td { text-align: left; padding: 0.4rem 0.8rem; border-bottom: 1px solid #333; }
  th { color: #888; font-weight: normal; }
  .empty { color: #666; margin-top: 1rem; }
</style>
</head>
<body>
<h1>pulsehub &mdash; <span id="total">0</span> peer(s) online</h1>
<table>
  <thead>
    <tr><th>id</th><th>name</th><th>location</th><th>uptime</th><th>last seen</th></tr>
  </thead>
  <tbody id="rows"></tbody>
</table>
<p class="empty" id="empty">no peers connected</p>
<script>
function fmt(ms) {
  var s = Math.floor(ms / 1000);
  if (s < 60) return s + "s";
  if (s < 3600) return Math.floor(s / 60) + "m" + (s % 60) + "s";
  return Math.floor(s / 3600) + "h" + Math.floor((s % 3600) / 60) + "m";
}
function refresh() {
  fetch("/api/roster").then(function (r) { return r.json(); }).then(function (peers) {
    document.getElementById("total").textContent = peers.length;
    document.getElementById("empty").style.display = peers.length ? "none" : "block";
    var rows = peers.map(function (p) {
      var seen = new Date(p.lastSeen).toLocaleTimeString();
      return "<tr><td>" + p.id + "</td><td>" + p.name + "</td><td>" + p.location +
        "</td><td>" + fmt(p.uptime) + "</td><td>" + seen + "</td></tr>";
    });
    document.getElementById("rows").innerHTML = rows.join("");
  });
}
refresh();
setInterval(refresh, 2000);
</script>
</body>
</html>
`
