package authn

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session keys. The groups are stored JSON-encoded so the cookie codec only
// ever sees strings.
const (
	sessionOriginalURL = "authn_original_url"
	sessionCaller      = "authn_caller"
	sessionGroups      = "authn_groups"
)

// Dialog is the per-caller authentication state kept in the gin session
// between requests of a multi-step login.
type Dialog struct {
	session sessions.Session
}

// DialogFor returns the dialog of the request's session. The sessions
// middleware must be installed.
func DialogFor(c *gin.Context) *Dialog {
	return &Dialog{session: sessions.Default(c)}
}

// OriginalURL is the request that was interrupted to show the login page.
func (d *Dialog) OriginalURL() string {
	s, _ := d.session.Get(sessionOriginalURL).(string)
	return s
}

func (d *Dialog) SetOriginalURL(u string) {
	d.session.Set(sessionOriginalURL, u)
}

func (d *Dialog) ClearOriginalURL() {
	d.session.Delete(sessionOriginalURL)
}

// Caller returns the caller established by an earlier SUCCESS. A session whose
// groups cannot be decoded holds no caller: a partial identity is never restored.
func (d *Dialog) Caller() (string, []string, bool) {
	name, _ := d.session.Get(sessionCaller).(string)
	if name == "" {
		return "", nil, false
	}
	groups := []string{}
	if raw, ok := d.session.Get(sessionGroups).(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &groups); err != nil {
			log.Printf("[Authn] Discarding session caller=%s: groups: %v", name, err)
			return "", nil, false
		}
		if groups == nil {
			groups = []string{}
		}
	}
	return name, groups, true
}

// hasCaller reports whether the session holds any caller entry, decodable or not.
func (d *Dialog) hasCaller() bool {
	return d.session.Get(sessionCaller) != nil || d.session.Get(sessionGroups) != nil
}

func (d *Dialog) SetCaller(name string, groups []string) {
	raw, _ := json.Marshal(groups)
	d.session.Set(sessionCaller, name)
	d.session.Set(sessionGroups, string(raw))
}

// ClearCaller forgets the established caller but keeps the dialog in progress.
func (d *Dialog) ClearCaller() {
	d.session.Delete(sessionCaller)
	d.session.Delete(sessionGroups)
}

// Reset forgets the established caller and any dialog in progress.
func (d *Dialog) Reset() {
	d.session.Delete(sessionOriginalURL)
	d.session.Delete(sessionCaller)
	d.session.Delete(sessionGroups)
}

func (d *Dialog) Save() error {
	if err := d.session.Save(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionSave, err)
	}
	return nil
}
