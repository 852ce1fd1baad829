package directory

import (
	"testing"

	"quickexpert/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedCatalogue(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	all := d.All()
	assert.Len(t, all, 15)

	jacob, ok := d.ByID("1")
	require.True(t, ok)
	assert.Equal(t, "Jacob Jones", jacob.Name)
	assert.Equal(t, RoleExpert, jacob.Role)
	assert.Equal(t, "$100/hr", jacob.Price)
}

func TestByRoleRequiresMatchingRole(t *testing.T) {
	d, err := Load()
	require.NoError(t, err)

	_, err = d.ByRole(RoleExpert, "1")
	assert.NoError(t, err)

	_, err = d.ByRole(RoleRecruiter, "1")
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))

	_, err = d.ByRole(RoleExpert, "999")
	assert.True(t, utils.IsErrorCode(err, utils.ErrNotFound))
}

func TestParseRoleAliases(t *testing.T) {
	role, err := ParseRole("jobseeker")
	require.NoError(t, err)
	assert.Equal(t, RoleJobSeeker, role)

	role, err = ParseRole(" Expert ")
	require.NoError(t, err)
	assert.Equal(t, RoleExpert, role)

	_, err = ParseRole("astronaut")
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidInput))
}

func TestSearch(t *testing.T) {
	d, err := Parse([]byte(`[
		{"id":"1","name":"Jacob Jones","role":"expert","expertise":"Legal Advisor"},
		{"id":"2","name":"Annette Black","role":"jobseeker","interest":"Looking for Marketing Job"},
		{"id":"3","name":"Devon Lane","role":"expert","expertise":"Marketing Strategist"}
	]`))
	require.NoError(t, err)

	results := d.Search("marketing", "")
	require.Len(t, results, 2)
	assert.Equal(t, "2", results[0].ID)
	assert.Equal(t, RoleJobSeeker, results[0].Role)

	results = d.Search("MARKETING", RoleExpert)
	require.Len(t, results, 1)
	assert.Equal(t, "Devon Lane", results[0].Name)

	assert.Len(t, d.Search("", RoleExpert), 2)
	assert.Empty(t, d.Search("plumber", ""))
}

func TestParseRejectsBadCatalogue(t *testing.T) {
	_, err := Parse([]byte(`{`))
	assert.True(t, utils.IsErrorCode(err, utils.ErrCorruptData))

	_, err = Parse([]byte(`[{"id":"1","role":"expert"},{"id":"1","role":"expert"}]`))
	assert.True(t, utils.IsErrorCode(err, utils.ErrDuplicate))

	_, err = Parse([]byte(`[{"id":"1","role":"wizard"}]`))
	assert.True(t, utils.IsErrorCode(err, utils.ErrInvalidInput))
}

func TestContactLink(t *testing.T) {
	p := Profile{WhatsApp: "+34 612 34 56 78"}
	assert.Equal(t, "https://wa.me/34612345678", ContactLink(p, ""))
	assert.Equal(t, "https://wa.me/34612345678?text=Hi+there%21", ContactLink(p, "Hi there!"))
	assert.Equal(t, "", ContactLink(Profile{}, "hello"))
}
