package auth

// indexPage is the redirect landing page. The authorization server puts
// the token in the URL fragment, so a script has to lift it out and post
// it back to the local listener.
const indexPage = `<!DOCTYPE html>
<html>
<head><title>ttv-chat authentication</title></head>
<body>
<p id="status">Handing the token back&hellip;</p>
<script>
(function () {
  var params = new URLSearchParams(window.location.hash.slice(1));
  var token = params.get("access_token");
  var status = document.getElementById("status");
  if (!token) {
    status.textContent = "No token found in the redirect. Please retry.";
    return;
  }
  fetch("/token", {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({ token: token })
  }).then(function () {
    status.textContent = "Done. You can close this tab.";
  }).catch(function () {
    status.textContent = "Failed to hand the token back. Please retry.";
  });
})();
</script>
</body>
</html>
`
