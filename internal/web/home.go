package web

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Home is the landing page: pick a pack and host a room, or join one by code.
func Home(packs []PackOption) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var options strings.Builder
		if len(packs) == 0 {
			options.WriteString(`<option value="">Default pack</option>`)
		}
		for _, pack := range packs {
			options.WriteString(`<option value="` + templ.EscapeString(pack.ID) + `">` + packLabel(pack) + `</option>`)
		}
		_, err := io.WriteString(w, `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Cards &amp; Chaos</title>
  </head>
  <body>
    <main class="shell">
      <header class="hero">
        <span class="tag">Cards &amp; Chaos</span>
        <h1>Fill in the blank. Win the room.</h1>
        <p>Host a room, share the four letter code, and let the czar decide.</p>
      </header>

      <section class="panel">
        <h2>Host a room</h2>
        <form id="createForm">
          <input name="name" placeholder="Your name" maxlength="20" required/>
          <select name="pack">`+options.String()+`</select>
          <input name="rounds" type="number" min="0" max="50" value="10"/>
          <button type="submit" class="primary">Create room</button>
        </form>
        <div id="createResult" class="result"></div>
      </section>

      <section class="panel">
        <h2>Join a room</h2>
        <form id="joinForm">
          <input name="code" placeholder="Room code" maxlength="4" autocomplete="off" required/>
          <input name="name" placeholder="Your name" maxlength="20" required/>
          <button type="submit" class="secondary">Join room</button>
        </form>
        <div id="joinResult" class="result"></div>
      </section>
    </main>

    <script>
      async function identity() {
        const res = await fetch("/api/auth/anonymous", {
          method: "POST",
          headers: { "Content-Type": "application/json" },
          body: JSON.stringify({ stored_uid: localStorage.getItem("cc_uid") || "" })
        });
        const data = await res.json();
        localStorage.setItem("cc_uid", data.uid);
        return data.uid;
      }

      async function call(path, body) {
        const uid = await identity();
        const res = await fetch(path, {
          method: "POST",
          headers: { "Content-Type": "application/json", "X-User-ID": uid },
          body: JSON.stringify(body)
        });
        return { ok: res.ok, data: await res.json() };
      }

      document.getElementById("createForm").addEventListener("submit", async (event) => {
        event.preventDefault();
        const form = event.target;
        const out = document.getElementById("createResult");
        out.textContent = "Creating room...";
        const body = { host_name: form.elements.name.value.trim(), max_rounds: Number(form.elements.rounds.value) };
        if (form.elements.pack.value) body.pack_id = form.elements.pack.value;
        const { ok, data } = await call("/api/rooms", body);
        out.textContent = ok ? "Room created. Code: " + data.room_code : (data.error || "Failed to create room.");
      });

      document.getElementById("joinForm").addEventListener("submit", async (event) => {
        event.preventDefault();
        const form = event.target;
        const out = document.getElementById("joinResult");
        out.textContent = "Joining room...";
        const code = form.elements.code.value.trim().toUpperCase();
        const { ok, data } = await call("/api/rooms/" + encodeURIComponent(code) + "/join", { player_name: form.elements.name.value.trim() });
        out.textContent = ok ? "Joined room " + data.room.roomCode + "." : (data.error || "Failed to join room.");
      });
    </script>
  </body>
</html>
`)
		return err
	})
}
