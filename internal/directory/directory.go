// Package directory serves the static catalogue of marketplace profiles:
// experts, professionals, recruiters and job seekers.
package directory

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"quickexpert/internal/utils"
)

type Role string

const (
	RoleExpert       Role = "expert"
	RoleProfessional Role = "professional"
	RoleRecruiter    Role = "recruiter"
	RoleJobSeeker    Role = "job_seeker"
)

// ParseRole accepts the canonical role names and "jobseeker" as an alias.
func ParseRole(value string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "expert", "experts":
		return RoleExpert, nil
	case "professional", "professionals":
		return RoleProfessional, nil
	case "recruiter", "recruiters":
		return RoleRecruiter, nil
	case "job_seeker", "jobseeker", "job-seeker", "jobseekers":
		return RoleJobSeeker, nil
	}
	return "", utils.NewAppError(utils.ErrInvalidInput, fmt.Sprintf("unknown role %q", value), nil)
}

// Profile is one catalogue entry. Fields that do not apply to a role are empty.
type Profile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	Expertise  string `json:"expertise,omitempty"`
	Status     string `json:"status,omitempty"`
	Price      string `json:"price,omitempty"`
	PhotoURL   string `json:"photoUrl,omitempty"`
	WhatsApp   string `json:"whatsapp,omitempty"`
	Experience string `json:"experience,omitempty"`
	JobTitle   string `json:"jobTitle,omitempty"`
	Interest   string `json:"interest,omitempty"`
}

//go:embed profiles.json
var catalogue []byte

// Directory is an immutable, in-memory profile catalogue.
type Directory struct {
	profiles []Profile
	byID     map[string]int
}

// Load returns the embedded catalogue.
func Load() (*Directory, error) {
	return Parse(catalogue)
}

// Parse builds a Directory from a JSON array of profiles.
func Parse(data []byte) (*Directory, error) {
	var profiles []Profile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, utils.NewAppError(utils.ErrCorruptData, "invalid profile catalogue", err)
	}

	d := &Directory{byID: make(map[string]int, len(profiles))}
	for _, p := range profiles {
		role, err := ParseRole(string(p.Role))
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.ID, err)
		}
		if _, dup := d.byID[p.ID]; dup {
			return nil, utils.NewAppError(utils.ErrDuplicate, "duplicate profile id "+p.ID, nil)
		}
		p.Role = role
		d.byID[p.ID] = len(d.profiles)
		d.profiles = append(d.profiles, p)
	}
	return d, nil
}

func (d *Directory) All() []Profile {
	out := make([]Profile, len(d.profiles))
	copy(out, d.profiles)
	return out
}

func (d *Directory) ByID(id string) (Profile, bool) {
	i, ok := d.byID[id]
	if !ok {
		return Profile{}, false
	}
	return d.profiles[i], true
}

// ByRole finds a profile by id that also has the given role, as detail pages do.
func (d *Directory) ByRole(role Role, id string) (Profile, error) {
	p, ok := d.ByID(id)
	if !ok || p.Role != role {
		return Profile{}, utils.NewAppError(utils.ErrNotFound, fmt.Sprintf("no %s with id %s", role, id), nil)
	}
	return p, nil
}

// Search matches query case-insensitively against name, expertise, job title
// and interest. An empty role matches every role.
func (d *Directory) Search(query string, role Role) []Profile {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]Profile, 0, len(d.profiles))
	for _, p := range d.profiles {
		if role != "" && p.Role != role {
			continue
		}
		if query == "" || p.matches(query) {
			out = append(out, p)
		}
	}
	return out
}

func (p Profile) matches(query string) bool {
	for _, field := range []string{p.Name, p.Expertise, p.JobTitle, p.Interest} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// ContactLink returns the wa.me link for the profile's WhatsApp number, with
// text prefilled when non-empty. Profiles without a number yield "".
func ContactLink(p Profile, text string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, p.WhatsApp)
	if digits == "" {
		return ""
	}

	link := "https://wa.me/" + digits
	if text = strings.TrimSpace(text); text != "" {
		link += "?text=" + url.QueryEscape(text)
	}
	return link
}
