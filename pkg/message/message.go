// Package message turns failures into short user-facing strings in the
// user's language.
package message

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/plashr/plashr/pkg/client"
	"github.com/plashr/plashr/pkg/pagination"
	"github.com/plashr/plashr/pkg/unsplash"
	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys. The English text doubles as the key.
const (
	MsgMissingBody   = "The server sent an empty response."
	MsgUnauthorized  = "You are not signed in. Run \"plashr login\" first."
	MsgForbidden     = "You are not allowed to do that."
	MsgNotFound      = "Nothing was found here."
	MsgRateLimited   = "The hourly request limit is used up. Try again later."
	MsgServerError   = "The photo service is having trouble (HTTP %d)."
	MsgRequestFailed = "The request was rejected (HTTP %d)."
	MsgConnectivity  = "No connection to the photo service. Check your network."
	MsgInvalidInput  = "Invalid %s: %s."
	MsgCancelled     = "Cancelled."
	MsgGeneric       = "Something went wrong."
	MsgPhotoCount    = "%d photos"
	MsgLoggedIn      = "Signed in as %s."
	MsgLoggedOut     = "Signed out."
	MsgSaved         = "Saved %s (%s)."
)

var supported = []language.Tag{language.English, language.German}

var matcher = language.NewMatcher(supported)

var cat = newCatalog()

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))

	en := map[string]string{
		MsgMissingBody:   MsgMissingBody,
		MsgUnauthorized:  MsgUnauthorized,
		MsgForbidden:     MsgForbidden,
		MsgNotFound:      MsgNotFound,
		MsgRateLimited:   MsgRateLimited,
		MsgServerError:   MsgServerError,
		MsgRequestFailed: MsgRequestFailed,
		MsgConnectivity:  MsgConnectivity,
		MsgInvalidInput:  MsgInvalidInput,
		MsgCancelled:     MsgCancelled,
		MsgGeneric:       MsgGeneric,
		MsgLoggedIn:      MsgLoggedIn,
		MsgLoggedOut:     MsgLoggedOut,
		MsgSaved:         MsgSaved,
	}
	de := map[string]string{
		MsgMissingBody:   "Der Server hat eine leere Antwort geschickt.",
		MsgUnauthorized:  "Du bist nicht angemeldet. Führe zuerst \"plashr login\" aus.",
		MsgForbidden:     "Dafür fehlt dir die Berechtigung.",
		MsgNotFound:      "Hier wurde nichts gefunden.",
		MsgRateLimited:   "Das stündliche Anfragelimit ist erreicht. Versuche es später erneut.",
		MsgServerError:   "Der Fotodienst hat Probleme (HTTP %d).",
		MsgRequestFailed: "Die Anfrage wurde abgelehnt (HTTP %d).",
		MsgConnectivity:  "Keine Verbindung zum Fotodienst. Prüfe dein Netzwerk.",
		MsgInvalidInput:  "Ungültige Angabe %s: %s.",
		MsgCancelled:     "Abgebrochen.",
		MsgGeneric:       "Etwas ist schiefgelaufen.",
		MsgLoggedIn:      "Angemeldet als %s.",
		MsgLoggedOut:     "Abgemeldet.",
		MsgSaved:         "%s gespeichert (%s).",
	}
	for key, msg := range en {
		b.SetString(language.English, key, msg)
	}
	for key, msg := range de {
		b.SetString(language.German, key, msg)
	}

	b.Set(language.English, MsgPhotoCount, plural.Selectf(1, "%d",
		"=0", "no photos",
		"one", "%d photo",
		"other", "%d photos"))
	b.Set(language.German, MsgPhotoCount, plural.Selectf(1, "%d",
		"=0", "keine Fotos",
		"one", "%d Foto",
		"other", "%d Fotos"))

	return b
}

// Printer formats messages for one locale.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// NewPrinter returns a printer for the closest supported locale; unknown
// locales get English.
func NewPrinter(locale string) *Printer {
	parsed, err := language.Parse(locale)
	if err != nil {
		return newPrinter()
	}
	return newPrinter(parsed)
}

// ForAcceptLanguage returns a printer for an HTTP Accept-Language header.
func ForAcceptLanguage(header string) *Printer {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return newPrinter()
	}
	return newPrinter(tags...)
}

func newPrinter(prefs ...language.Tag) *Printer {
	tag := language.English
	if len(prefs) > 0 {
		if _, idx, conf := matcher.Match(prefs...); conf != language.No {
			tag = supported[idx]
		}
	}
	return &Printer{tag: tag, p: message.NewPrinter(tag, message.Catalog(cat))}
}

// Language returns the locale the printer settled on.
func (p *Printer) Language() language.Tag {
	return p.tag
}

// Sprintf formats a message key.
func (p *Printer) Sprintf(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

// Format maps err to a user-facing string. Nil yields "".
func (p *Printer) Format(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) {
		return p.Sprintf(MsgCancelled)
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return p.Sprintf(MsgInvalidInput, strings.ToLower(fe.Field()), quote(fe.Value()))
	}

	kind, status := Classify(err)
	switch kind {
	case pagination.KindMissingBody:
		return p.Sprintf(MsgMissingBody)
	case pagination.KindHTTPStatus:
		return p.status(status)
	case pagination.KindConnectivity:
		return p.Sprintf(MsgConnectivity)
	default:
		return p.Sprintf(MsgGeneric)
	}
}

func (p *Printer) status(code int) string {
	switch {
	case code == http.StatusUnauthorized:
		return p.Sprintf(MsgUnauthorized)
	case code == http.StatusForbidden:
		return p.Sprintf(MsgForbidden)
	case code == http.StatusNotFound:
		return p.Sprintf(MsgNotFound)
	case code == http.StatusTooManyRequests:
		return p.Sprintf(MsgRateLimited)
	case code >= 500:
		return p.Sprintf(MsgServerError, code)
	default:
		return p.Sprintf(MsgRequestFailed, code)
	}
}

// Classify returns the failure kind of err and, for http_status failures,
// the status code. Rate-limit rejections report 429 whatever status the
// API used.
func Classify(err error) (pagination.ErrorKind, int) {
	if client.IsRateLimited(err) {
		return pagination.KindHTTPStatus, http.StatusTooManyRequests
	}
	var le *pagination.LoadError
	if errors.As(err, &le) {
		return le.Kind, le.StatusCode
	}
	var re *unsplash.RequestError
	if errors.As(err, &re) {
		return re.Kind, re.StatusCode
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return pagination.KindHTTPStatus, apiErr.StatusCode
	}
	if errors.Is(err, pagination.ErrMissingBody) {
		return pagination.KindMissingBody, 0
	}
	return pagination.KindGeneric, 0
}

func quote(v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return "\"\""
	}
	return "\"" + s + "\""
}
