package model

// Asset is a catalogued image record. The fixed columns below are always
// present; tag columns (prefixed "tag_") are added and removed at runtime by
// the tag schema DAO and therefore never appear as struct fields. Queries
// that need tag values scan rows into maps and populate Tags explicitly.
type Asset struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	FilePath    string `gorm:"column:file_path" json:"file_path"`
	PreviewPath string `gorm:"column:preview_path" json:"preview_path"`
	Name        string `gorm:"column:name" json:"name"`
	UploadDate  string `gorm:"column:upload_date" json:"upload_date"`
	Hash        string `gorm:"column:hash;uniqueIndex" json:"hash"`

	// Tags holds the asset's dynamic tag column values keyed by full column
	// name (e.g. "tag_outdoor"). Not persisted through gorm struct mapping.
	Tags map[string]bool `gorm:"-" json:"tags"`
}

// TableName sets the table name for the Asset model.
func (Asset) TableName() string {
	return "assets"
}

// IsPending reports whether the record is a placeholder written during the
// first phase of ingest, before any file has been materialized for it.
func (a *Asset) IsPending() bool {
	return a.FilePath == ""
}
