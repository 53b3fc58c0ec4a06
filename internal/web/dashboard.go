package web

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Spot Bot Dashboard</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: linear-gradient(135deg, #0f0c29, #302b63, #24243e);
            color: #fff;
            min-height: 100vh;
            padding: 20px;
        }
        .container { max-width: 1400px; margin: 0 auto; display: grid; grid-template-columns: 350px 1fr; gap: 20px; }
        .card {
            background: rgba(255, 255, 255, 0.05);
            border-radius: 16px;
            padding: 24px;
            border: 1px solid rgba(255, 255, 255, 0.1);
            margin-bottom: 20px;
        }
        h1 { font-size: 28px; margin-bottom: 24px; }
        h2 { font-size: 20px; margin-bottom: 16px; color: #a0aec0; }
        .stat-row { display: flex; justify-content: space-between; padding: 10px 0; border-bottom: 1px solid rgba(255, 255, 255, 0.05); }
        .stat-label { color: #a0aec0; }
        .positive { color: #48bb78; }
        .negative { color: #f56565; }
        table { width: 100%; border-collapse: collapse; font-size: 14px; }
        th, td { text-align: left; padding: 8px; border-bottom: 1px solid rgba(255, 255, 255, 0.05); }
        th { color: #a0aec0; font-weight: 500; }
        button {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: #fff; border: none; border-radius: 8px; padding: 10px 16px;
            cursor: pointer; margin: 4px 4px 0 0;
        }
        button.danger { background: #c53030; }
    </style>
</head>
<body>
<h1>🤖 Spot Bot</h1>
<div class="container">
    <div>
        <div class="card">
            <h2>📊 Stats</h2>
            <div id="stats"></div>
        </div>
        <div class="card">
            <h2>⚙️ Engine</h2>
            <button onclick="action('start')">▶️ Start</button>
            <button onclick="action('stop')">⏸️ Stop</button>
            <button class="danger" onclick="action('stop_close')">🛑 Stop &amp; close</button>
            <button class="danger" onclick="closeAll()">❌ Close all</button>
        </div>
    </div>
    <div>
        <div class="card">
            <h2>📋 Positions</h2>
            <table id="positions"></table>
        </div>
        <div class="card">
            <h2>🔍 Last scan <span id="scan-progress"></span></h2>
            <table id="scan"></table>
        </div>
    </div>
</div>
<script>
const fmt = (v, d) => Number(v || 0).toFixed(d);

function row(label, value, cls) {
    return '<div class="stat-row"><span class="stat-label">' + label + '</span><span class="' + (cls || '') + '">' + value + '</span></div>';
}

async function refresh() {
    const stats = await (await fetch('/api/stats')).json();
    const s = stats.stats || {};
    document.getElementById('stats').innerHTML =
        row('Status', stats.state) +
        row('Mode', stats.is_simulated ? 'Paper' : 'Live') +
        row('Balance', stats.balance === undefined ? 'n/a' : fmt(stats.balance, 2) + ' USDT') +
        row('Slots', stats.open_positions + ' / ' + stats.max_slots) +
        row('Trades', s.total_trades) +
        row('Win rate', fmt(s.win_rate, 1) + '%') +
        row('Total P&L', fmt(s.total_profit, 4) + ' USDT', s.total_profit >= 0 ? 'positive' : 'negative') +
        row('Max drawdown', fmt(s.max_drawdown, 4) + ' USDT');

    const positions = await (await fetch('/api/positions')).json();
    document.getElementById('positions').innerHTML =
        '<tr><th>Symbol</th><th>Entry</th><th>Amount</th><th>SL</th><th>TP</th><th></th></tr>' +
        positions.map(p => '<tr><td>' + p.symbol + '</td><td>' + fmt(p.entry_price, 8) + '</td><td>' + fmt(p.amount, 8) +
            '</td><td>' + fmt(p.stop_loss_price, 8) + '</td><td>' + fmt(p.take_profit_price, 8) +
            '</td><td><button class="danger" onclick="closePosition(\'' + p.symbol + '\')">Close</button></td></tr>').join('');

    const scan = await (await fetch('/api/scan?limit=20')).json();
    document.getElementById('scan-progress').textContent = '(' + scan.scanned + '/' + scan.total + ')';
    document.getElementById('scan').innerHTML =
        '<tr><th>Symbol</th><th>Price</th><th>24h</th><th>RSI</th><th>Score</th><th>Signal</th></tr>' +
        (scan.results || []).map(r => '<tr><td>' + r.symbol + '</td><td>' + fmt(r.price, 8) + '</td><td class="' +
            (r.change_24h >= 0 ? 'positive' : 'negative') + '">' + fmt(r.change_24h, 2) + '%</td><td>' + fmt(r.rsi, 1) +
            '</td><td>' + fmt(r.score, 1) + '</td><td>' + r.signal + '</td></tr>').join('');
}

async function action(name) {
    const resp = await fetch('/api/engine/action', {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify({action: name})});
    if (!resp.ok) alert((await resp.json()).error);
    refresh();
}

async function closeAll() {
    const resp = await (await fetch('/api/positions/close-all', {method: 'POST'})).json();
    if (!resp.all_closed) alert('Some positions could not be closed');
    refresh();
}

async function closePosition(symbol) {
    const resp = await fetch('/api/positions/' + symbol, {method: 'DELETE'});
    if (!resp.ok) alert((await resp.json()).error);
    refresh();
}

refresh();
setInterval(refresh, 5000);
</script>
</body>
</html>
`
