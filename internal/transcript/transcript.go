// Package transcript renders a room snapshot as a standalone HTML document.
package transcript

import (
	"io"
	"time"

	cmp "maragu.dev/gomponents"
	g "maragu.dev/gomponents/html"

	"github.com/nfrund/roomchat/internal/chat"
)

const stylesheet = `
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; color: #1f2937; }
header { border-bottom: 1px solid #e5e7eb; margin-bottom: 1rem; }
.meta { color: #6b7280; font-size: .875rem; }
.status { background: #fee2e2; color: #b91c1c; padding: .5rem; border-radius: .25rem; }
.messages { list-style: none; padding: 0; }
.message { padding: .5rem .75rem; margin: .25rem 0; border-radius: .5rem; background: #f3f4f6; }
.message.own { background: #e0e7ff; text-align: right; }
.message.system { background: none; color: #6b7280; font-style: italic; text-align: center; }
.sender { margin-right: .5rem; }
.time { color: #9ca3af; font-size: .75rem; margin-left: .5rem; }
footer { border-top: 1px solid #e5e7eb; margin-top: 1rem; color: #6b7280; font-size: .875rem; }
`

// Render writes the document for v to w.
func Render(w io.Writer, v chat.View) error {
	return Page(v).Render(w)
}

// Page is the full document.
func Page(v chat.View) cmp.Node {
	return g.Doctype(
		g.HTML(
			g.Lang("en"),
			g.Head(
				g.Meta(g.Charset("utf-8")),
				g.TitleEl(cmp.Text(v.RoomName)),
				g.StyleEl(cmp.Raw(stylesheet)),
			),
			g.Body(
				g.Header(
					g.H1(cmp.Text(v.RoomName)),
					g.P(
						g.Class("meta"),
						cmp.Textf("%s · exported %s", v.ParticipantCount, v.At.UTC().Format(time.RFC1123)),
					),
					cmp.If(v.Status != "", g.P(g.Class("status"), cmp.Text(v.Status))),
				),
				g.Main(
					g.Ul(g.Class("messages"), cmp.Map(v.Messages, message)),
				),
				g.Footer(participants(v.Participants)),
			),
		),
	)
}

func message(m chat.MessageView) cmp.Node {
	class := "message"
	switch {
	case m.System:
		class += " system"
	case m.Own:
		class += " own"
	}
	stamp := m.Timestamp.UTC().Format(time.RFC3339)

	return g.Li(
		g.Class(class),
		g.ID(m.Key),
		g.Data("sender", m.Sender),
		cmp.If(!m.System, g.Strong(g.Class("sender"), cmp.Text(m.Sender))),
		g.Span(g.Class("content"), cmp.Text(m.Content)),
		g.Span(g.Class("time"), g.Title(stamp), cmp.Text(m.RelativeTime)),
	)
}

func participants(ps []chat.ParticipantView) cmp.Node {
	if len(ps) == 0 {
		return nil
	}
	return g.P(
		cmp.Text("Participants: "),
		cmp.Map(ps, func(p chat.ParticipantView) cmp.Node {
			name := p.Username
			if p.Self {
				name += " (you)"
			}
			return g.Span(g.Class("participant"), cmp.Text(name+" "))
		}),
	)
}
