// Copyright 2025 The go-ezchain Authors
// This file is part of the go-ezchain library.
//
// The go-ezchain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ezchain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ezchain library. If not, see <http://www.gnu.org/licenses/>.

package api

// uiPanel is the static status panel served on / and /ui. It reads only
// unauthenticated endpoints; actions that need the token go through the
// CLI.
const uiPanel = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>EZchain node panel</title>
<style>
  body { font-family: ui-monospace, monospace; margin: 2rem; background: #101418; color: #d8dee9; }
  h1 { font-size: 1.2rem; }
  section { border: 1px solid #2e3440; border-radius: 6px; padding: 1rem; margin-bottom: 1rem; }
  pre { white-space: pre-wrap; word-break: break-all; margin: 0; }
  .label { color: #88c0d0; }
</style>
</head>
<body>
<h1>EZchain node panel</h1>
<section><span class="label">health</span><pre id="health">loading…</pre></section>
<section><span class="label">wallet</span><pre id="wallet">loading…</pre></section>
<section><span class="label">node</span><pre id="node">loading…</pre></section>
<section><span class="label">metrics</span><pre id="metrics">loading…</pre></section>
<script>
async function load(path, id) {
  try {
    const res = await fetch(path);
    const body = await res.json();
    document.getElementById(id).textContent = JSON.stringify(body, null, 2);
  } catch (err) {
    document.getElementById(id).textContent = String(err);
  }
}
function refresh() {
  load('/health', 'health');
  load('/wallet/show', 'wallet');
  load('/node/status', 'node');
  load('/metrics', 'metrics');
}
refresh();
setInterval(refresh, 5000);
</script>
</body>
</html>
`
