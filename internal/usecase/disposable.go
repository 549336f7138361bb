package usecase

import "strings"

// defaultDisposableDomains is a static list of throwaway-inbox providers.
var defaultDisposableDomains = []string{
	"10minutemail.com",
	"20minutemail.com",
	"33mail.com",
	"anonaddy.me",
	"burnermail.io",
	"discard.email",
	"dispostable.com",
	"emailondeck.com",
	"fakeinbox.com",
	"getairmail.com",
	"getnada.com",
	"guerrillamail.biz",
	"guerrillamail.com",
	"guerrillamail.de",
	"guerrillamail.info",
	"guerrillamail.net",
	"guerrillamail.org",
	"guerrillamailblock.com",
	"harakirimail.com",
	"inboxbear.com",
	"incognitomail.org",
	"jetable.org",
	"mail.tm",
	"maildrop.cc",
	"mailcatch.com",
	"mailinator.com",
	"mailinator.net",
	"mailinator2.com",
	"mailnesia.com",
	"mailpoof.com",
	"mintemail.com",
	"moakt.com",
	"mohmal.com",
	"mytemp.email",
	"nada.email",
	"sharklasers.com",
	"spam4.me",
	"spamgourmet.com",
	"temp-mail.io",
	"temp-mail.org",
	"tempail.com",
	"tempmail.com",
	"tempmail.dev",
	"tempmail.net",
	"tempmailo.com",
	"tempr.email",
	"throwawaymail.com",
	"trashmail.com",
	"trashmail.de",
	"trashmail.net",
	"yopmail.com",
	"yopmail.fr",
	"yopmail.net",
}

// Blocklist is a set of lower-cased domains.
type Blocklist map[string]struct{}

// NewBlocklist builds a set from domains, normalizing case and whitespace.
func NewBlocklist(domains ...string) Blocklist {
	b := make(Blocklist, len(domains))
	for _, d := range domains {
		d = strings.Trim(strings.ToLower(strings.TrimSpace(d)), ".")
		if d != "" {
			b[d] = struct{}{}
		}
	}
	return b
}

// DefaultBlocklist returns the built-in disposable-domain list.
func DefaultBlocklist() Blocklist {
	return NewBlocklist(defaultDisposableDomains...)
}

// Blocks reports whether domain or any of its parent domains is listed.
func (b Blocklist) Blocks(domain string) bool {
	domain = strings.Trim(strings.ToLower(domain), ".")
	for domain != "" {
		if _, ok := b[domain]; ok {
			return true
		}
		i := strings.IndexByte(domain, '.')
		if i < 0 {
			return false
		}
		domain = domain[i+1:]
	}
	return false
}

// emailDomain is the lower-cased text after the last '@'.
func emailDomain(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[i+1:]))
}
