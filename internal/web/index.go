package web

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>loanmon</title>
  <style>
    :root { --ink:#1d1d1d; --panel:#f4f1e8; --safe:#2e9e5b; --caution:#c9a400; --warning:#e07b00; --high:#d84315; --mc:#b71c1c; }
    body { margin:0; min-height:100vh; display:flex; justify-content:center; padding:2rem 0;
      font-family:'Space Mono',monospace; background:#e9e4d4; color:var(--ink); }
    #app { width:min(1100px, 96vw); background:var(--panel); border:3px solid var(--ink);
      padding:2rem; box-shadow:12px 12px 0 rgba(0,0,0,.15); }
    header { display:flex; justify-content:space-between; align-items:center; }
    .status { font-size:.65rem; text-transform:uppercase; letter-spacing:.1em;
      border:2px solid var(--ink); padding:.4rem .9rem; background:#fff; }
    .cards { display:grid; grid-template-columns:repeat(auto-fit, minmax(180px, 1fr)); gap:1rem; margin:1.5rem 0; }
    .card { border:2px solid var(--ink); background:#fff; padding:1rem; }
    .card h3 { margin:0 0 .5rem; font-size:.6rem; text-transform:uppercase; letter-spacing:.15em; }
    .card p { margin:0; font-size:1.3rem; }
    .tier { color:#fff; padding:.2rem .5rem; }
    .SAFE { background:var(--safe); } .CAUTION { background:var(--caution); }
    .WARNING { background:var(--warning); } .HIGH_RISK { background:var(--high); }
    .MARGIN_CALL { background:var(--mc); }
    table { width:100%; border-collapse:collapse; font-size:.8rem; }
    th, td { border-bottom:1px dashed rgba(0,0,0,.25); padding:.4rem; text-align:right; }
    th:first-child, td:first-child { text-align:left; }
  </style>
</head>
<body>
  <div id="app">
    <header>
      <h1>Flexible loan monitor</h1>
      <span class="status" id="status">connecting</span>
    </header>
    <section class="cards">
      <div class="card"><h3>Risk</h3><p id="tier">-</p></div>
      <div class="card"><h3>Current LTV</h3><p id="ltv">-</p></div>
      <div class="card"><h3>To margin call</h3><p id="mc">-</p></div>
      <div class="card"><h3>Collateral</h3><p id="collateral">-</p></div>
      <div class="card"><h3>Borrowed</h3><p id="loan">-</p></div>
    </section>
    <table>
      <thead><tr><th>time</th><th>LTV</th><th>margin call</th><th>collateral</th><th>loan</th><th>risk</th></tr></thead>
      <tbody id="rows"></tbody>
    </table>
  </div>
  <script>
    const fmt = (v, d) => Number(v).toFixed(d);
    const rows = document.getElementById('rows');
    const status = document.getElementById('status');
    const es = new EventSource('/snapshots/stream');
    es.onopen = () => { status.textContent = 'live'; };
    es.onerror = () => { status.textContent = 'reconnecting'; };
    es.addEventListener('loan', (ev) => {
      const s = JSON.parse(ev.data);
      document.getElementById('tier').innerHTML = '<span class="tier ' + s.risk_tier + '">' + s.risk_tier + '</span>';
      document.getElementById('ltv').textContent = fmt(s.current_ltv, 2) + '%';
      document.getElementById('mc').textContent = fmt(s.ltv_to_margin_call, 2) + '%';
      document.getElementById('collateral').textContent = '$' + fmt(s.collateral_usd, 2);
      document.getElementById('loan').textContent = '$' + fmt(s.loan_usd, 2);
      const tr = document.createElement('tr');
      tr.innerHTML = '<td>' + new Date(s.ts).toLocaleString() + '</td>' +
        '<td>' + fmt(s.current_ltv, 2) + '%</td>' +
        '<td>' + fmt(s.margin_call_ltv, 2) + '%</td>' +
        '<td>$' + fmt(s.collateral_usd, 2) + '</td>' +
        '<td>$' + fmt(s.loan_usd, 2) + '</td>' +
        '<td><span class="tier ' + s.risk_tier + '">' + s.risk_tier + '</span></td>';
      rows.prepend(tr);
      while (rows.children.length > 200) rows.removeChild(rows.lastChild);
    });
  </script>
</body>
</html>
`
