package call

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"text/template"

	"github.com/myrjola/surveycall/internal/errors"
)

// defaultFarewells are rendered with the [Caller] as data.
var defaultFarewells = map[EndReason]string{
	Completed: "Thanks so much for sharing your thoughts{{with .Name}}, {{.}}{{end}}! " +
		"I really appreciate your time, and I hope you have a great rest of your day! Goodbye!",
	WrongPerson:       "I apologize for the mix-up! Have a great day! Goodbye!",
	Declined:          "Of course, no problem at all! Thanks for your time, and have a great day! Goodbye!",
	NotAvailable:      "No worries, we'll try another time. Thank you, and have a wonderful day! Goodbye!",
	CallbackScheduled: "Fantastic! We'll call you back then. Thank you for your time, and have a wonderful day! Goodbye!",
	LinkSent:          "Great! We'll send that over. Thank you for your time, and have a wonderful day! Goodbye!",
	TimeLimit: "We're out of time for today{{with .Name}}, {{.}}{{end}}. " +
		"Thank you so much for everything you shared! Goodbye!",
}

// Farewells holds the final utterance for each end reason.
type Farewells struct {
	templates map[EndReason]*template.Template
}

// NewFarewells compiles the farewell texts. Reasons missing from overrides keep the built-in text.
func NewFarewells(overrides map[EndReason]string) (*Farewells, error) {
	f := Farewells{templates: make(map[EndReason]*template.Template, len(defaultFarewells))}
	for _, reason := range EndReasons() {
		text := defaultFarewells[reason]
		if override, ok := overrides[reason]; ok && strings.TrimSpace(override) != "" {
			text = override
		}
		tmpl, err := template.New(string(reason)).Option("missingkey=zero").Parse(text)
		if err != nil {
			return nil, errors.Wrap(err, "parse farewell", slog.String("reason", string(reason)))
		}
		f.templates[reason] = tmpl
	}
	return &f, nil
}

// DefaultFarewells returns the built-in farewell texts.
func DefaultFarewells() *Farewells {
	f, err := NewFarewells(nil)
	if err != nil {
		panic(err)
	}
	return f
}

// DecodeFarewells reads a JSON object mapping end reasons to farewell templates.
func DecodeFarewells(r io.Reader) (*Farewells, error) {
	var raw map[string]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode farewells")
	}
	overrides := make(map[EndReason]string, len(raw))
	for key, text := range raw {
		reason, err := ParseEndReason(key)
		if err != nil {
			return nil, errors.Wrap(err, "farewell key")
		}
		overrides[reason] = text
	}
	return NewFarewells(overrides)
}

// Render returns the farewell for reason addressed to caller.
func (f *Farewells) Render(reason EndReason, caller Caller) string {
	tmpl, ok := f.templates[reason]
	if !ok {
		tmpl = f.templates[Declined]
	}
	caller.Name = strings.TrimSpace(caller.Name)
	var b strings.Builder
	if err := tmpl.Execute(&b, caller); err != nil {
		return "Thank you for your time. Goodbye!"
	}
	return b.String()
}
