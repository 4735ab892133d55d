package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
	StorageB2    = "b2"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

const (
	MimePDF         = "application/pdf"
	MimeImage       = "image/"
	MimeOctetStream = "application/octet-stream"
)

// MaxUploadSize caps a single answer upload.
const MaxUploadSize = 20 << 20
