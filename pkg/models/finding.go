package models

import "strings"

// Category is a coarse classification of a finding used to pick a verifier
type Category string

const (
	CategoryApache  Category = "Apache"
	CategoryDB      Category = "DB"
	CategoryDNS     Category = "DNS"
	CategoryFTP     Category = "FTP"
	CategoryIKE     Category = "IKE"
	CategoryNginx   Category = "Nginx"
	CategoryRDP     Category = "RDP"
	CategorySMB     Category = "SMB"
	CategorySMTP    Category = "SMTP"
	CategorySMTP2   Category = "SMTP2"
	CategorySSH     Category = "SSH"
	CategorySSL     Category = "SSL"
	CategoryTelnet  Category = "Telnet"
	CategoryTomcat  Category = "Tomcat"
	CategoryWeb     Category = "Web"
	CategoryGeneral Category = "General"
)

// Categories lists every category with an evidence directory, in display order
var Categories = []Category{
	CategoryApache, CategoryDB, CategoryDNS, CategoryFTP, CategoryIKE, CategoryNginx,
	CategoryRDP, CategorySMB, CategorySMTP, CategorySMTP2, CategorySSH, CategorySSL,
	CategoryTelnet, CategoryTomcat, CategoryWeb, CategoryGeneral,
}

// Dir returns the directory name used for the category in the evidence tree
func (c Category) Dir() string {
	if c == "" {
		return strings.ToLower(string(CategoryGeneral))
	}
	return strings.ToLower(string(c))
}

// Finding represents one row of a vulnerability scan export
type Finding struct {
	IP          string   `json:"ip"`
	Port        string   `json:"port"`
	Service     string   `json:"service"`
	Name        string   `json:"vulnerability"`
	PluginID    string   `json:"plugin_id"`
	Description string   `json:"description"`
	Solution    string   `json:"solution"`
	Category    Category `json:"category"`
}

// WithCategory returns a copy of the finding assigned to c
func (f Finding) WithCategory(c Category) Finding {
	f.Category = c
	return f
}

// Target returns ip:port
func (f Finding) Target() string {
	return f.IP + ":" + f.Port
}
