package verifier

import (
	"path/filepath"
	"strings"

	"github.com/ExclusiveAccount/secops-toolkit/pkg/models"
	"github.com/ExclusiveAccount/secops-toolkit/pkg/runner"
)

// weakSSHAlgorithms are kex, cipher, mac and host key names reported by ssh2-enum-algos
var weakSSHAlgorithms = []string{
	"-cbc", "arcfour", "3des", "blowfish", "cast128", "rijndael-cbc",
	"diffie-hellman-group1-sha1", "diffie-hellman-group14-sha1", "diffie-hellman-group-exchange-sha1",
	"gss-gex-sha1", "gss-group1-sha1", "gss-group14-sha1",
	"hmac-md5", "hmac-sha1", "hmac-ripemd160", "umac-64",
	"ssh-dss", "ssh-rsa1",
}

func checkTable() map[models.Category]checkSpec {
	return map[models.Category]checkSpec{
		models.CategoryApache: apacheCheck,
		models.CategoryTomcat: tomcatCheck,
		models.CategoryNginx:  nginxCheck,
		models.CategoryWeb:    webCheck,
		models.CategorySSL:    sslCheck,
		models.CategorySSH:    sshCheck,
		models.CategoryRDP:    rdpCheck,
		models.CategorySMB:    smbCheck,
		models.CategorySMTP:   smtpCheck,
		models.CategorySMTP2:  smtp2Check,
		models.CategoryFTP:    ftpCheck,
		models.CategoryDNS:    dnsCheck,
		models.CategoryDB:     dbCheck,
		models.CategoryTelnet: telnetCheck,
		models.CategoryIKE:    ikeCheck,
	}
}

func lowerName(f models.Finding) string {
	return strings.ToLower(f.Name)
}

var apacheCheck = checkSpec{
	build: func(s *runner.ScriptResolver, f models.Finding, dir string) invocation {
		script := "http-vuln-*"
		if strings.Contains(lowerName(f), "default") {
			script = "http-title"
		} else if strings.Contains(lowerName(f), "status") {
			script = "http-apache-server-status"
		}
		return nmapScan(s, f, dir, portOr(f, "80"), script)
	},
	verified: func(out string, f models.Finding) bool {
		return nameIn(out, f) || vulnerable(out) ||
			containsAny(out, "default page", "it works", "test page", "apache server status")
	},
	knownIDs: true,
}

var tomcatCheck = checkSpec{
	build: func(s *runner.ScriptResolver, f models.Finding, dir string) invocation {
		script := "http-title"
		if containsAny(lowerName(f), "manager", "credential") {
			script = "http-default-accounts"
		}
		return nmapScan(s, f, dir, portOr(f, "8080"), script)
	},
	verified: func(out string, f models.Finding) bool {
		return nameIn(out, f) || vulnerable(out) || containsAny(out, "apache tomcat", "/manager/")
	},
}

var nginxCheck = checkSpec{
	build: func(s *runner.ScriptResolver, f models.Finding, dir string) invocation {
		script := "http-vuln-*"
		if containsAny(lowerName(f), "version", "disclosure", "header", "banner") {
			script = "http-server-header"
		}
		return nmapScan(s, f, dir, portOr(f, "80"), script)
	},
	verified: func(out string, f models.Finding) bool {
		return nameIn(out, f) || vulnerable(out) || strings.Contains(out, "nginx/")
	},
}

var webCheck = checkSpec{
	build: func(s *runner.ScriptResolver, f models.Finding, dir string) invocation {
		name := lowerName(f)
		script := "http-vuln-*"
		switch {
		case strings.Contains(name, "traversal"):
			script = "http-passwd"
		case strings.Contains(name, "xss"), strings.Contains(name, "cross-site scripting"):
			script = "http-stored-xss"
		case strings.Contains(name, "sql"):
			script = "http-sql-injection"
		case strings.Contains(name, "method"):
			script = "http-methods"
		}
		return nmapScan(s, f, dir, portOr(f, "80"), script)
	},
	verified: func(out string, f models.Finding) bool {
		return nameIn(out, f) || vulnerable(out) || containsAny(out,
			"potentially risky methods", "directory traversal found", "possible sqli", "found the following stored xss")
	},
	knownIDs: true,
}

var sslCheck = checkSpec{
	build: func(_ *runner.ScriptResolver, f models.Finding, dir string) invocation {
		return invocation{cmd: runner.Command{
			Name:       "sslscan",
			Args:       []string{"--no-colour", f.IP + ":" + portOr(f, "443")},
			OutputFile: filepath.Join(dir, "sslscan.txt"),
		}}
	},
	verified: func(out string, f models.Finding) bool {
		switch strings.TrimSpace(f.PluginID) {
		case "26928", "42873":
			return containsAny(out, "rc4", "md5", "sha1")
		case "15901":
			return lineHas(out, "sslv3", "enabled")
		case "88881":
			return lineHas(out, "tlsv1.0", "enabled")
		case "57582":
			return containsAny(out, "self-signed", "self signed")
		}

		name := lowerName(f)
		switch {
		case strings.Contains(name, "sslv2"), strings.Contains(name, "ssl version 2"):
			return lineHas(out, "sslv2", "enabled")
		case strings.Contains(name, "sslv3"), strings.Contains(name, "ssl version 3"), strings.Contains(name, "poodle"):
			return lineHas(out, "sslv3", "enabled")
		case strings.Contains(name, "tls version 1.0"), strings.Contains(name, "tlsv1.0"):
			return lineHas(out, "tlsv1.0", "enabled")
		case strings.Contains(name, "tls version 1.1"), strings.Contains(name, "tlsv1.1"):
			return lineHas(out, "tlsv1.1", "enabled")
		case strings.Contains(name, "rc4"):
			return strings.Contains(out, "rc4")
		case strings.Contains(name, "sweet32"), strings.Contains(name, "3des"):
			return containsAny(out, "des-cbc3", "3des")
		case strings.Contains(name, "self-signed"), strings.Contains(name, "self signed"):
			return containsAny(out, "self-signed", "self signed")
		}
		return nameIn(out, f) || vulnerable(out)
	},
}

var sshCheck = checkSpec{
	build: func(s *runner.ScriptResolver, f models.Finding, dir string) invocation {
		name := lowerName(f)
		script := "banner"
		switch {
		case containsAny(name, "weak", "algorithm", "cipher", "mac", "cbc", "key exchange", "kex"):
			script = "ssh2-enum-algos"
		case containsAny(name, "auth", "password"):
			script = "ssh-auth-methods"
		}
		return nmapScan(s, f, dir, portOr(f, "22"), script)
	},
	verified: func(out string, f models.Finding) bool {
		if strings.Contains(out, "ssh2-enum-algos") {
			return containsAny(out, weakSSHAlgorithms...)
		}
		if strings.Contains(out, "ssh-auth-methods") {
			return strings.Contains(out, "password")
		}
		return nameIn(out, f) || vulnerable(out)
	},
}

var rdpCheck = checkSpec{
	build: func(s *runner.ScriptResolver, f models.Finding, dir string) invocation {
		script := "rdp-enum-encryption"
		if containsAny(lowerName(f), "ms12-020", "ms12", "remote code") {
			script = "rdp-vuln-ms12-020"
		}
		return nmapScan(s, f, dir, portOr(f, "3389"), script)
	},
	verified: func(out string, f models.Finding) bool {
		return vulnerable(out) || containsAny(out,
			"native rdp: success", "rdp protocol: success",
			"encryption level: low", "encryption level: client compatible",
			"40-bit rc4: success", "56-bit rc4: success")
	},
}

var smbCheck = checkSpec{
	build: func(s *runner.ScriptResolver, f models.Finding, dir string) invocation {
		name := lowerName(f)
		script := "smb-protocols"
		switch {
		case strings.Contains(name, "ms17"):
			script = "smb-vuln-ms17-010"
		case strings.Contains(name, "signing"):
			script = "smb2-security-mode"
		}
		return nmapScan(s, f, dir, portOr(f, "445"), script)
	},
	verified: func(out string, f models.Finding) bool {
		return vulnerable(out) || containsAny(out, "not required", "smbv1", "nt lm 0.12")
	},
}

var smtpCheck = checkSpec{
	build: func(s *runner.ScriptResolver, f models.Finding, dir string) invocation {
		script := "smtp-commands"
		if strings.Contains(lowerName(f), "relay") {
			script = "smtp-open-relay"
		}
		return nmapScan(s, f, dir, portOr(f, "25"), script)
	},
	verified: func(out string, f models.Finding) bool {
		return vulnerable(out) || containsAny(out, "server is an open relay", "vrfy", "expn")
	},
}

var smtp2Check = checkSpec{
	build: func(s *runner.ScriptResolver, f models.Finding, dir string) invocation {
		script := "smtp-commands"
		if strings.Contains(lowerName(f), "banner") {
			script = "banner"
		}
		return nmapScan(s, f, dir, portOr(f, "25"), script)
	},
	verified: func(out string, f models.Finding) bool {
		if strings.Contains(lowerName(f), "banner") {
			return containsAny(out, "esmtp", "postfix", "exim", "sendmail", "microsoft")
		}
		return containsAny(out, "starttls", "auth plain", "auth login")
	},
}

var ftpCheck = checkSpec{
	build: func(s *runner.ScriptResolver, f models.Finding, dir string) invocation {
		name := lowerName(f)
		script := "banner"
		switch {
		case strings.Contains(name, "anonymous"):
			script = "ftp-anon"
		case containsAny(name, "backdoor", "vsftpd 2.3.4"):
			script = "ftp-vsftpd-backdoor"
		}
		return nmapScan(s, f, dir, portOr(f, "21"), script)
	},
	verified: func(out string, f models.Finding) bool {
		if strings.Contains(out, "banner:") {
			return strings.Contains(out, "220")
		}
		return vulnerable(out) || strings.Contains(out, "anonymous ftp login allowed")
	},
}

var dnsCheck = checkSpec{
	build: func(s *runner.ScriptResolver, f models.Finding, dir string) invocation {
		script := "dns-nsid"
		if strings.Contains(lowerName(f), "recursi") {
			script = "dns-recursion"
		}
		return nmapScan(s, f, dir, portOr(f, "53"), script, "-sU")
	},
	verified: func(out string, f models.Finding) bool {
		return vulnerable(out) || containsAny(out, "recursion appears to be enabled", "bind.version", "id.server")
	},
}

var dbCheck = checkSpec{
	build: func(s *runner.ScriptResolver, f models.Finding, dir string) invocation {
		name := lowerName(f)
		script, port := "banner", portOr(f, "3306")
		switch {
		case strings.Contains(name, "cve-2012-2122"), strings.Contains(name, "authentication bypass"):
			script = "mysql-vuln-cve2012-2122"
		case containsAny(name, "mysql", "mariadb"):
			script = "mysql-info"
		case containsAny(name, "mssql", "sql server"):
			script, port = "ms-sql-info", portOr(f, "1433")
		case strings.Contains(name, "mongodb"):
			script, port = "mongodb-info", portOr(f, "27017")
		case strings.Contains(name, "redis"):
			script, port = "redis-info", portOr(f, "6379")
		case strings.Contains(name, "postgres"):
			port = portOr(f, "5432")
		}
		return nmapScan(s, f, dir, port, script)
	},
	verified: func(out string, f models.Finding) bool {
		return nameIn(out, f) || vulnerable(out) || strings.Contains(out, "version")
	},
}

var telnetCheck = checkSpec{
	build: func(_ *runner.ScriptResolver, f models.Finding, dir string) invocation {
		return invocation{cmd: runner.Command{
			Name:       "telnet",
			Args:       []string{f.IP, portOr(f, "23")},
			Stdin:      "QUIT\r\n",
			OutputFile: filepath.Join(dir, "telnet.txt"),
		}}
	},
	verified: func(out string, _ models.Finding) bool {
		return containsAny(out, "connected", "login")
	},
}

var ikeCheck = checkSpec{
	build: func(_ *runner.ScriptResolver, f models.Finding, dir string) invocation {
		args := []string{"-M"}
		if strings.Contains(lowerName(f), "aggressive") {
			args = append(args, "-A")
		}
		if p := portOr(f, "500"); p != "500" {
			args = append(args, "--dport="+p)
		}
		args = append(args, f.IP)
		return invocation{cmd: runner.Command{
			Name:       "ike-scan",
			Args:       args,
			OutputFile: filepath.Join(dir, "ike_scan.txt"),
		}}
	},
	verified: func(out string, _ models.Finding) bool {
		return containsAny(out, "aggressive", "weak")
	},
}

var generalCheck = checkSpec{
	build: func(s *runner.ScriptResolver, f models.Finding, dir string) invocation {
		return nmapScan(s, f, dir, portOr(f, "1-1024"), "vuln", "-sV")
	},
	verified: func(out string, f models.Finding) bool {
		return nameIn(out, f) || vulnerable(out)
	},
}
