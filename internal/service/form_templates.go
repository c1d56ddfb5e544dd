package service

// Hosted card form. Card fields are posted straight to the gateway and never
// echoed back into the page.
const paymentFormHTML = `<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Payment {{.OrderID}}</title>
<style>
body{font-family:system-ui,sans-serif;background:#f4f5f7;margin:0;display:flex;justify-content:center;padding-top:48px}
.card{background:#fff;border-radius:12px;box-shadow:0 2px 12px rgba(0,0,0,.08);padding:32px;width:360px}
h1{font-size:18px;margin:0 0 4px}
.amount{font-size:28px;font-weight:600;margin-bottom:24px}
label{display:block;font-size:13px;color:#555;margin:12px 0 4px}
input{width:100%;box-sizing:border-box;padding:10px;border:1px solid #ccc;border-radius:6px;font-size:15px}
.row{display:flex;gap:12px}
button{width:100%;margin-top:24px;padding:12px;background:#2b6cf6;color:#fff;border:0;border-radius:6px;font-size:16px;cursor:pointer}
.desc{color:#777;font-size:13px;margin-bottom:16px}
</style>
</head>
<body>
<div class="card">
<h1>Order {{.OrderID}}</h1>
<div class="amount">{{.Amount}} {{.Currency}}</div>
{{if .Description}}<div class="desc">{{.Description}}</div>{{end}}
<form method="post" action="/api/v1/paymentform/submit" autocomplete="off">
<input type="hidden" name="PaymentId" value="{{.PaymentID}}">
<input type="hidden" name="SessionToken" value="{{.SessionToken}}">
<label>Card number</label>
<input name="PAN" inputmode="numeric" maxlength="23" required>
<div class="row">
<div><label>Expiry (MM/YY)</label><input name="Expiry" placeholder="MM/YY" maxlength="5" required></div>
<div><label>CVV</label><input name="CVV" type="password" inputmode="numeric" maxlength="4" required></div>
</div>
<label>Cardholder</label>
<input name="CardHolder">
<label>Email for receipt</label>
<input name="Email" type="email">
<button type="submit">Pay {{.Amount}} {{.Currency}}</button>
</form>
</div>
</body>
</html>`

const paymentResultHTML = `<!DOCTYPE html>
<html lang="ru">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Payment result</title>
<style>
body{font-family:system-ui,sans-serif;background:#f4f5f7;margin:0;display:flex;justify-content:center;padding-top:48px}
.card{background:#fff;border-radius:12px;box-shadow:0 2px 12px rgba(0,0,0,.08);padding:32px;width:360px;text-align:center}
.ok{color:#1a9c4b}.fail{color:#d43c3c}
.status{font-size:14px;color:#777;margin-top:12px}
</style>
</head>
<body>
<div class="card">
{{if .Paid}}<h1 class="ok">Payment accepted</h1>{{else}}<h1 class="fail">Payment not completed</h1>{{end}}
<div>{{.Amount}} {{.Currency}} &middot; order {{.OrderID}}</div>
<div class="status">{{.Status}}</div>
<div class="status">{{.PaymentID}}</div>
</div>
</body>
</html>`
