package subnet

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestAnalyzeIPv4(t *testing.T) {
	a := Analyze("192.168.1.77/29", 0)
	require.True(t, a.Valid())
	assert.Equal(t, 4, a.Version)
	assert.Equal(t, "192.168.1.72", a.Network)
	assert.Equal(t, "192.168.1.79", a.Broadcast)
	assert.Equal(t, "255.255.255.248", a.Netmask)
	assert.Equal(t, 29, a.Prefix)
	assert.Equal(t, "192.168.1.73", a.FirstUsable)
	assert.Equal(t, "192.168.1.78", a.LastUsable)
	assert.Equal(t, int64(8), a.Total.Int64())
	assert.Equal(t, int64(6), a.Usable.Int64())
	assert.Equal(t, "Class C", a.Class)
	assert.Len(t, a.Addresses, 8)
	assert.False(t, a.Truncated)
}

func TestAnalyzeSmallPrefixes(t *testing.T) {
	p31 := Analyze("10.0.0.0/31", 0)
	assert.Equal(t, "10.0.0.0", p31.FirstUsable)
	assert.Equal(t, "10.0.0.1", p31.LastUsable)
	assert.Equal(t, int64(2), p31.Usable.Int64())

	single := Analyze("10.0.0.9", 0)
	require.True(t, single.Valid())
	assert.Equal(t, 32, single.Prefix)
	assert.Equal(t, "10.0.0.9", single.FirstUsable)
	assert.Equal(t, int64(1), single.Usable.Int64())
	assert.Equal(t, []string{"10.0.0.9"}, single.Addresses)
}

func TestAnalyzeIPv6(t *testing.T) {
	a := Analyze("2001:db8::/126", 0)
	require.True(t, a.Valid())
	assert.Equal(t, 6, a.Version)
	assert.Equal(t, "N/A (IPv6)", a.Broadcast)
	assert.Equal(t, "N/A (IPv6)", a.Class)
	assert.Equal(t, "ffff:ffff:ffff:ffff:ffff:ffff:ffff:fffc", a.Netmask)
	assert.Equal(t, "2001:db8::1", a.FirstUsable)
	assert.Equal(t, "2001:db8::3", a.LastUsable)
	assert.Equal(t, int64(3), a.Usable.Int64())

	wide := Analyze("2001:db8::/64", 10)
	assert.True(t, wide.Truncated)
	assert.Len(t, wide.Addresses, 10)
	want := new(big.Int).Lsh(big.NewInt(1), 64)
	assert.Equal(t, 0, want.Cmp(wide.Total))
}

func TestAnalyzeCapsHostList(t *testing.T) {
	a := Analyze("10.0.0.0/8", 0)
	assert.Len(t, a.Addresses, DefaultHostLimit)
	assert.True(t, a.Truncated)
	assert.Equal(t, "Class A", a.Class)
	assert.Equal(t, int64(16777214), a.Usable.Int64())
}

func TestClasses(t *testing.T) {
	assert.Equal(t, "Class B", Analyze("172.16.0.0/16", 1).Class)
	assert.Equal(t, "Class D (Multicast)", Analyze("224.0.0.0/24", 1).Class)
	assert.Equal(t, "Class E (Reserved)", Analyze("250.0.0.0/24", 1).Class)
}

func TestInvalidInput(t *testing.T) {
	a := Analyze("10.0.0.0/33", 0)
	assert.False(t, a.Valid())
	col := DetailColumn(a)
	assert.Equal(t, "INVALID SUBNET: 10.0.0.0/33", col[0])
	assert.Contains(t, col[1], "Error: ")
}

func TestAnalyzeAll(t *testing.T) {
	analyses, stats := AnalyzeAll([]string{"10.0.0.0/30", "bogus", "10.0.1.0/30"}, 0)
	require.Len(t, analyses, 3)
	assert.Equal(t, 3, stats.TotalSubnets)
	assert.Equal(t, 2, stats.Valid)
	assert.Equal(t, 1, stats.Invalid)
	assert.Equal(t, int64(8), stats.TotalIPs.Int64())
	assert.Equal(t, int64(4), stats.UsableIPs.Int64())
}

func TestDetailColumn(t *testing.T) {
	col := DetailColumn(Analyze("10.0.0.0/30", 0))
	assert.Equal(t, []string{
		"10.0.0.0", "10.0.0.1", "10.0.0.2", "10.0.0.3",
		"",
		"Network ID: 10.0.0.0",
		"Broadcast: 10.0.0.3",
		"Netmask: 255.255.255.252",
		"Prefix: /30",
		"",
		"First Usable: 10.0.0.1",
		"Last Usable: 10.0.0.2",
		"",
		"Total IPs: 4",
		"Usable IPs: 2",
		"Network Class: Class A",
	}, col)
}

func TestReadSubnets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scope.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\n10.0.0.0/24\n\n 192.168.0.0/30 \n"), 0644))

	subnets, err := ReadSubnets(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.0/24", "192.168.0.0/30"}, subnets)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n\n"), 0644))
	_, err = ReadSubnets(empty)
	assert.ErrorIs(t, err, ErrNoSubnets)
}

func TestWriteWorkbook(t *testing.T) {
	analyses, stats := AnalyzeAll([]string{"10.0.0.0/30", "bogus"}, 0)
	path := filepath.Join(t.TempDir(), "subnet_ranges_detailed.xlsx")
	generated := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	require.NoError(t, WriteWorkbook(path, analyses, stats, generated))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SheetOverall, SheetSummary, SheetDetails}, f.GetSheetList())

	overall, err := f.GetRows(SheetOverall)
	require.NoError(t, err)
	assert.Equal(t, []string{"Metric", "Value"}, overall[0])
	assert.Equal(t, []string{"Total Subnets", "2"}, overall[1])
	assert.Equal(t, []string{"Report Generated", "2024-05-01 12:30:00"}, overall[6])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, SummaryHeaders, summary[0])
	assert.Equal(t, "255.255.255.252", summary[1][4])
	assert.Equal(t, "Invalid", summary[2][1])

	styleID, err := f.GetCellStyle(SheetSummary, "C3")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.Contains(t, style.Font.Color, "FF0000")

	details, err := f.GetCols(SheetDetails)
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "10.0.0.0/30", details[0][0])
	assert.Equal(t, "10.0.0.0", details[0][1])
	assert.Equal(t, "INVALID SUBNET: bogus", details[1][1])

	width, err := f.GetColWidth(SheetSummary, "K")
	require.NoError(t, err)
	assert.Equal(t, 18.0, width)
}

func TestWriteLists(t *testing.T) {
	analyses, _ := AnalyzeAll([]string{"10.0.0.0/30", "bogus", "2001:db8::/127"}, 0)
	dir := t.TempDir()
	files, err := WriteLists(dir, analyses)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "10.0.0.0_30_ips.txt"),
		filepath.Join(dir, "2001-db8--_127_ips.txt"),
	}, files)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Subnet: 10.0.0.0/30\n# Network ID: 10.0.0.0\n")
	assert.Contains(t, string(data), "10.0.0.0\n10.0.0.1\n10.0.0.2\n10.0.0.3\n")
}
