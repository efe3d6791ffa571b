package app

import "net/http"

// chatPage is the single embedded UI: a message list, a model picker, an API
// key field, and an image slot for exported views.
const chatPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>RevitMCP</title>
<style>
  body { font-family: system-ui, sans-serif; max-width: 760px; margin: 2rem auto; padding: 0 1rem; }
  #log { border: 1px solid #ccc; border-radius: 6px; padding: 1rem; height: 420px; overflow-y: auto; }
  .user { color: #14532d; margin: .4rem 0; }
  .bot { color: #1e3a8a; margin: .4rem 0; white-space: pre-wrap; }
  .err { color: #991b1b; font-size: .85em; }
  #controls { display: flex; gap: .5rem; margin-top: .75rem; }
  #prompt { flex: 1; }
  #viewimg { max-width: 100%; margin-top: .75rem; display: none; }
</style>
</head>
<body>
<h1>RevitMCP</h1>
<div>
  <select id="model">
    <option>echo_model</option>
    <option>gpt-4o</option>
    <option>claude-3.5-sonnet</option>
    <option>gemini-1.5-pro</option>
    <option>ollama-llama3</option>
  </select>
  <input id="apikey" type="password" placeholder="API key (or Ollama URL)" size="32">
</div>
<div id="log"></div>
<img id="viewimg" alt="exported view">
<div id="controls">
  <input id="prompt" placeholder="Ask about the open Revit model...">
  <button id="send">Send</button>
</div>
<script>
const conversation = [];
const log = document.getElementById('log');
function append(role, text, cls) {
  const div = document.createElement('div');
  div.className = cls;
  div.textContent = (role ? role + ': ' : '') + text;
  log.appendChild(div);
  log.scrollTop = log.scrollHeight;
}
async function send() {
  const input = document.getElementById('prompt');
  const text = input.value.trim();
  if (!text) return;
  input.value = '';
  conversation.push({role: 'user', content: text});
  append('you', text, 'user');
  const resp = await fetch('/chat_api', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({
      conversation: conversation,
      model: document.getElementById('model').value,
      apiKey: document.getElementById('apikey').value
    })
  });
  const data = await resp.json();
  if (data.reply) {
    conversation.push({role: 'bot', content: data.reply});
    append('bot', data.reply, 'bot');
  }
  if (data.error_detail) append('', data.error_detail, 'err');
  const img = document.getElementById('viewimg');
  if (data.image_output) { img.src = data.image_output; img.style.display = 'block'; }
}
document.getElementById('send').addEventListener('click', send);
document.getElementById('prompt').addEventListener('keydown', e => { if (e.key === 'Enter') send(); });
</script>
</body>
</html>`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(chatPage))
}
