package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/iWorld-y/forest_radar/app/forest_radar/pkg/model"
)

const ts = "20261013_093000"

func sampleDoc() *model.ReportDocument {
	doc := &model.ReportDocument{Meta: model.RunMeta{Timestamp: ts}}
	for _, def := range model.Catalog {
		var s model.Section
		switch def.Ordinal {
		case model.SectionForest:
			s = model.NewSection(def, []model.Record{model.Forest{Name: "corp.example.com"}}, "")
		case model.SectionDomainControllers:
			s = model.NewSection(def, []model.Record{
				model.DomainController{
					HostName:        "dc01.corp.example.com",
					Site:            "HQ",
					IPv4Address:     "10.0.0.10",
					OperatingSystem: "Windows Server 2022 Standard",
					OSVersion:       "10.0 (20348)",
					IsReadOnly:      false,
					FSMORoles:       []string{"SchemaMaster", "RIDMaster"},
					GlobalCatalog:   model.Assessment{Status: model.Healthy, Value: "True", Classified: true},
					DNSService:      model.Assessment{Status: model.Healthy, Value: "Running", Classified: true},
				},
			}, "")
		case model.SectionPolicyObjects:
			s = model.NewSection(def, []model.Record{model.PolicyObject{
				DisplayName:      "Default Domain Policy, \"baseline\"",
				ID:               "31B2F340-016D-11D2-945F-00C04FB984F9",
				CreationTime:     time.Date(2019, 3, 1, 8, 0, 0, 0, time.UTC),
				ModificationTime: time.Date(2026, 9, 30, 17, 45, 0, 0, time.UTC),
				Status:           model.Assessment{Status: model.Healthy, Value: "AllSettingsEnabled", Classified: true},
			}}, "")
		case model.SectionDHCP:
			s = model.FailedSection(def, errors.New("no DHCP servers are authorized in the directory"))
		default:
			s = model.NewSection(def, nil, "")
		}
		doc.Sections = append(doc.Sections, s)
	}
	return doc
}

// unavailableSink 模拟电子表格引擎不可用
type unavailableSink struct{}

func (unavailableSink) Name() string     { return "xlsx" }
func (unavailableSink) Available() error { return errors.New("engine not installed") }
func (unavailableSink) Export(string, string, []Dataset) ([]string, error) {
	panic("export must not be called on an unavailable sink")
}

// brokenSink 写出一个文件后失败
type brokenSink struct{}

func (brokenSink) Name() string     { return "xlsx" }
func (brokenSink) Available() error { return nil }
func (brokenSink) Export(dir, timestamp string, _ []Dataset) ([]string, error) {
	path := filepath.Join(dir, "partial_"+timestamp+".xlsx")
	if err := os.WriteFile(path, []byte("PK"), 0o644); err != nil {
		return nil, err
	}
	return []string{path}, errors.New("disk full")
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestDatasets(t *testing.T) {
	ds := Datasets(sampleDoc())
	require.Len(t, ds, 11)

	names := make([]string, 0, len(ds))
	for _, d := range ds {
		names = append(names, d.Name)
		assert.NotEmpty(t, d.Columns, d.Name)
	}
	assert.Equal(t, []string{
		"DomainControllers", "Replication", "Sites", "DNSZones", "DHCPScopes",
		"Tier0Accounts", "Tier1Accounts", "Tier2Accounts", "ServiceAccounts",
		"MailServers", "GroupPolicies",
	}, names)

	assert.Equal(t, []string{"dc01.corp.example.com", "HQ", "10.0.0.10", "Windows Server 2022 Standard",
		"10.0 (20348)", "True", "False", "SchemaMaster; RIDMaster", "Running"}, ds[0].Rows[0])
	// 失败的 Section 只保留表头
	assert.Empty(t, ds[4].Rows)
	assert.Equal(t, model.Columns(model.KindDHCPScope), ds[4].Columns)
}

func TestExporter_FallbackToCSV(t *testing.T) {
	dir := t.TempDir()
	res, err := NewExporter(unavailableSink{}, &CSVSink{}).Export(dir, sampleDoc())
	require.NoError(t, err)

	assert.Equal(t, "csv", res.Sink)
	assert.Contains(t, res.FallbackReason, "engine not installed")
	require.Len(t, res.Files, 11)

	for _, d := range Datasets(sampleDoc()) {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", d.Name, ts))
		assert.Contains(t, res.Files, path)
		rows := readCSV(t, path)
		require.NotEmpty(t, rows, d.Name)
		assert.Equal(t, d.Columns, rows[0], d.Name)
		assert.Len(t, rows, len(d.Rows)+1, d.Name)
	}

	gpo := readCSV(t, filepath.Join(dir, "GroupPolicies_"+ts+".csv"))
	assert.Equal(t, []string{"Default Domain Policy, \"baseline\"", "31B2F340-016D-11D2-945F-00C04FB984F9",
		"AllSettingsEnabled", "2019-03-01", "2026-09-30"}, gpo[1])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 11)
}

func TestExporter_NoHybridOutput(t *testing.T) {
	dir := t.TempDir()
	res, err := NewExporter(brokenSink{}, &CSVSink{}).Export(dir, sampleDoc())
	require.NoError(t, err)
	assert.Equal(t, "csv", res.Sink)
	assert.Contains(t, res.FallbackReason, "disk full")

	matches, err := filepath.Glob(filepath.Join(dir, "*.xlsx"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestExporter_LastSinkFails(t *testing.T) {
	_, err := NewExporter(unavailableSink{}).Export(t.TempDir(), sampleDoc())
	assert.ErrorContains(t, err, "engine not installed")
}

// trimRow GetRows 会省略行尾的空单元格
func trimRow(row []string) []string {
	for len(row) > 0 && row[len(row)-1] == "" {
		row = row[:len(row)-1]
	}
	return row
}

func TestXLSXSink_MatchesCSV(t *testing.T) {
	doc := sampleDoc()
	xlsxDir, csvDir := t.TempDir(), t.TempDir()

	res, err := NewExporter(&XLSXSink{BaseName: "AD_Inventory"}).Export(xlsxDir, doc)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(xlsxDir, "AD_Inventory_"+ts+".xlsx")}, res.Files)
	assert.Empty(t, res.FallbackReason)

	_, err = NewExporter(&CSVSink{}).Export(csvDir, doc)
	require.NoError(t, err)

	f, err := excelize.OpenFile(res.Files[0])
	require.NoError(t, err)
	defer f.Close()

	datasets := Datasets(doc)
	sheets := f.GetSheetList()
	require.Len(t, sheets, len(datasets))
	for i, d := range datasets {
		assert.Equal(t, d.Name, sheets[i])

		got, err := f.GetRows(d.Name)
		require.NoError(t, err)
		want := readCSV(t, filepath.Join(csvDir, fmt.Sprintf("%s_%s.csv", d.Name, ts)))
		require.Len(t, got, len(want), d.Name)
		for r := range want {
			assert.Equal(t, trimRow(want[r]), trimRow(got[r]), d.Name)
		}
	}

	width, err := f.GetColWidth("DomainControllers", "D")
	require.NoError(t, err)
	assert.Equal(t, float64(len("Windows Server 2022 Standard")+2), width)
}

func TestXLSXSink_Available(t *testing.T) {
	assert.NoError(t, (&XLSXSink{}).Available())
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "Tier0Accounts", sheetName("Tier0Accounts"))
	assert.Len(t, []rune(sheetName("AVeryLongDatasetNameThatExceedsTheLimit")), 31)
}

func TestNew(t *testing.T) {
	for _, tt := range []struct {
		format string
		sinks  []string
	}{
		{"auto", []string{"xlsx", "csv"}},
		{"xlsx", []string{"xlsx"}},
		{"csv", []string{"csv"}},
	} {
		e, err := New(tt.format, "AD_Inventory")
		require.NoError(t, err, tt.format)
		var names []string
		for _, s := range e.sinks {
			names = append(names, s.Name())
		}
		assert.Equal(t, tt.sinks, names, tt.format)
	}

	_, err := New("pdf", "AD_Inventory")
	assert.ErrorContains(t, err, "unknown export format: pdf")
}

func TestCSVSink_FailureLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	// 换行不能作为分隔符，文件创建后写入失败
	files, err := (&CSVSink{Comma: '\n'}).Export(dir, ts, Datasets(sampleDoc()))
	assert.ErrorContains(t, err, "dataset DomainControllers")
	assert.Empty(t, files)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCSVSink_Delimiter(t *testing.T) {
	dir := t.TempDir()
	_, err := (&CSVSink{Comma: ';'}).Export(dir, ts, Datasets(sampleDoc()))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "MailServers_"+ts+".csv"))
	require.NoError(t, err)
	assert.Equal(t, "Name;Site;Roles;Version;Build;Edition\n", string(data))
}
