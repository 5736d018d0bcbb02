package excel

// ExportConfig holds configuration for workbook export
type ExportConfig struct {
	FilePath       string `json:"file_path"`
	IncludeSummary bool   `json:"include_summary"`
}

// DefaultExportConfig writes every sheet
func DefaultExportConfig(path string) ExportConfig {
	return ExportConfig{FilePath: path, IncludeSummary: true}
}

// Sheet names of an exported workbook
const (
	SheetTrials     = "Trials"
	SheetConditions = "Conditions"
	SheetEffect     = "Effect"
)
