package categorizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
)

func TestCategorizeKeywords(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name    string
		finding models.Finding
		want    models.Category
	}{
		{"apache welcome page", models.Finding{Name: "Apache Default Welcome Page", PluginID: "11219"}, models.CategoryApache},
		{"tomcat wins over apache", models.Finding{Name: "Apache Tomcat Manager Default Credentials"}, models.CategoryTomcat},
		{"ssh ciphers are not ssl", models.Finding{Name: "SSH Server CBC Mode Ciphers Enabled"}, models.CategorySSH},
		{"ssl certificate", models.Finding{Name: "SSL Certificate Cannot Be Trusted"}, models.CategorySSL},
		{"rdp nla", models.Finding{Name: "Terminal Services Doesn't Use Network Level Authentication (NLA) Only"}, models.CategoryRDP},
		{"smb signing", models.Finding{Name: "SMB Signing not required"}, models.CategorySMB},
		{"smtp starttls", models.Finding{Name: "SMTP Service STARTTLS Plaintext Command Injection"}, models.CategorySMTP2},
		{"smtp relay", models.Finding{Name: "MTA Open Mail Relaying Allowed", Service: "smtp"}, models.CategorySMTP},
		{"telnet", models.Finding{Name: "Unencrypted Telnet Server"}, models.CategoryTelnet},
		{"ike", models.Finding{Name: "IKE Aggressive Mode with Pre-Shared Key"}, models.CategoryIKE},
		{"service only", models.Finding{Name: "Weak Key Exchange Algorithms Enabled", Service: "SSH"}, models.CategorySSH},
		{"web", models.Finding{Name: "HTTP TRACE / TRACK Methods Allowed"}, models.CategoryWeb},
		{"db", models.Finding{Name: "MySQL Unpatched Version"}, models.CategoryDB},
		{"dns", models.Finding{Name: "DNS Server Recursive Query Cache Poisoning Weakness"}, models.CategoryDNS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rules.Categorize(tt.finding))
		})
	}
}

func TestCategorizeIdentifierFallback(t *testing.T) {
	rules := DefaultRules()

	assert.Equal(t, models.CategoryIKE, rules.Categorize(models.Finding{Name: "Unknown issue", PluginID: "62694"}))
	assert.Equal(t, models.CategorySSL, rules.Categorize(models.Finding{Name: "Host uses self-signed cert"}))
	assert.Equal(t, models.CategoryGeneral, rules.Categorize(models.Finding{Name: "Unknown issue", PluginID: "999999"}))
	assert.Equal(t, models.CategoryGeneral, rules.Categorize(models.Finding{}))
}

func TestCategorizeIsDeterministic(t *testing.T) {
	rules := DefaultRules()
	f := models.Finding{Service: "tcp", Name: "Something unusual", PluginID: "57582,62694"}

	first := rules.Categorize(f)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, rules.Categorize(f))
	}
}

func TestApplyDoesNotMutate(t *testing.T) {
	rules := DefaultRules()
	f := models.Finding{Name: "Apache Default Welcome Page"}

	got := rules.Apply(f)
	assert.Equal(t, models.CategoryApache, got.Category)
	assert.Empty(t, f.Category)
}

func TestKnownVerified(t *testing.T) {
	rules := DefaultRules()

	assert.True(t, rules.KnownVerified(models.CategoryApache, "11219"))
	assert.True(t, rules.KnownVerified(models.CategoryWeb, " 73342 "))
	assert.False(t, rules.KnownVerified(models.CategoryApache, "99999"))
	assert.False(t, rules.KnownVerified(models.CategorySSH, "11219"))
	assert.False(t, rules.KnownVerified(models.Category("Unknown"), "11219"))
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vuln_mappings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"categories": [
			{"name": "Web", "keywords": ["PORTAL"], "identifiers": {"login page": ["1001"]}},
			{"name": "General"}
		]
	}`), 0644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, []models.Category{models.CategoryWeb, models.CategoryGeneral}, rules.Names())
	assert.Equal(t, models.CategoryWeb, rules.Categorize(models.Finding{Name: "Exposed Portal"}))
	assert.Equal(t, models.CategoryWeb, rules.Categorize(models.Finding{Name: "x", PluginID: "1001"}))
	assert.Equal(t, models.CategoryGeneral, rules.Categorize(models.Finding{Name: "Apache Default Welcome Page"}))
}

func TestLoadRulesErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadRules(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("categories: [::"), 0644))
	_, err = LoadRules(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("categories: []\n"), 0644))
	_, err = LoadRules(empty)
	assert.Error(t, err)

	unnamed := filepath.Join(dir, "unnamed.yaml")
	require.NoError(t, os.WriteFile(unnamed, []byte("categories:\n  - keywords: [x]\n"), 0644))
	_, err = LoadRules(unnamed)
	assert.Error(t, err)
}
