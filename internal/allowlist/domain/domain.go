package domain

import (
	"slices"
	"strings"
)

// DomainRecord is keyed by lowercase domain name. For non-generic domains the
// record's existence approves every address at the domain; Emails is then
// advisory. For generic providers only listed addresses are approved.
type DomainRecord struct {
	Domain string   `json:"domain" firestore:"domain"`
	Emails []string `json:"emails" firestore:"emails"`
}

func (r *DomainRecord) Clone() *DomainRecord {
	if r == nil {
		return nil
	}
	return &DomainRecord{Domain: r.Domain, Emails: slices.Clone(r.Emails)}
}

func (r *DomainRecord) HasEmail(email string) bool {
	return r != nil && slices.Contains(r.Emails, email)
}

// AddEmail appends email keeping insertion order. It reports false when the
// email was already listed.
func (r *DomainRecord) AddEmail(email string) bool {
	if r.HasEmail(email) {
		return false
	}
	r.Emails = append(r.Emails, email)
	return true
}

func (r *DomainRecord) RemoveEmail(email string) bool {
	i := slices.Index(r.Emails, email)
	if i < 0 {
		return false
	}
	r.Emails = slices.Delete(r.Emails, i, i+1)
	return true
}

// GenericProviders are consumer webmail hosts where domain-level approval is
// disabled.
var GenericProviders = []string{
	"gmail.com",
	"yahoo.com",
	"hotmail.com",
	"outlook.com",
	"aol.com",
	"icloud.com",
	"protonmail.com",
	"proton.me",
	"mail.com",
	"yandex.com",
	"zoho.com",
	"gmx.com",
	"live.com",
	"msn.com",
	"inbox.com",
	"fastmail.com",
	"tutanota.com",
	"hey.com",
}

func IsGenericProvider(domain string) bool {
	return slices.Contains(GenericProviders, strings.ToLower(domain))
}

func Normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// DomainOf returns the part after "@". ok is false for values without
// exactly one "@" or with an empty local part or domain.
func DomainOf(email string) (domain string, ok bool) {
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "", false
	}
	return domain, true
}

// ValidDomain accepts values like "example.com". Slashes and whitespace are
// rejected because the domain doubles as a document key.
func ValidDomain(value string) bool {
	if value == "" || strings.HasPrefix(value, "@") || !strings.Contains(value, ".") {
		return false
	}
	return !strings.ContainsAny(value, "/@ \t\n")
}

func ValidEmail(value string) bool {
	domain, ok := DomainOf(value)
	return ok && !strings.ContainsAny(value, "/ \t\n") && strings.Contains(domain, ".")
}
