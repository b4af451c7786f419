package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Kind selects the folder an upload is filed under.
type Kind string

const (
	KindConsultation Kind = "consultation"
	KindMedicalImage Kind = "medical-image"
)

var kindDirs = map[Kind]string{
	KindConsultation: "consultations",
	KindMedicalImage: "medical-images",
}

// ParseKind validates a kind query value.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kindDirs[k]; !ok {
		return "", fmt.Errorf("invalid upload kind %q (want consultation or medical-image)", s)
	}
	return k, nil
}

// File is one file of a multipart upload.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// Uploaded describes a stored file.
type Uploaded struct {
	Key           string     `json:"key"`
	URL           string     `json:"url"`
	FileName      string     `json:"file_name"`
	ContentType   string     `json:"content_type"`
	Size          int64      `json:"size"`
	SuggestedType string     `json:"suggested_type,omitempty"`
	DICOM         *DICOMInfo `json:"dicom,omitempty"`
}

// URLPrefix is where stored objects are served from.
const URLPrefix = "/api/v1/blobs/"

// ObjectKey builds "<dir>/<patientID>/<unixmillis>_<filename>".
func ObjectKey(kind Kind, patientID uuid.UUID, fileName string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%d_%s", kindDirs[kind], patientID, at.UnixMilli(), cleanFileName(fileName))
}

// PatientFromKey returns the patient segment of an object key.
func PatientFromKey(key string) (uuid.UUID, bool) {
	parts := strings.SplitN(key, "/", 3)
	if len(parts) != 3 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(parts[1])
	return id, err == nil
}

func cleanFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Join(strings.Fields(name), "_")
	if name == "." || name == "/" || name == "" {
		return "file"
	}
	return name
}

// Uploader files uploads for a patient into a BlobStore.
type Uploader struct {
	store   BlobStore
	maxSize int64
	now     func() time.Time
	logger  zerolog.Logger
}

func NewUploader(store BlobStore, maxSize int64, logger zerolog.Logger) *Uploader {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	return &Uploader{store: store, maxSize: maxSize, now: time.Now, logger: logger}
}

// Upload validates and stores files. DICOM files must parse; their
// modality becomes the suggested image type. Either every file is stored or,
// on the first failure, the ones already written are removed.
func (u *Uploader) Upload(ctx context.Context, patientID uuid.UUID, kind Kind, createdBy string, files []File) ([]Uploaded, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("at least one file is required")
	}

	var out []Uploaded
	rollback := func() {
		for _, up := range out {
			if err := u.store.Delete(ctx, up.Key); err != nil {
				u.logger.Warn().Err(err).Str("key", up.Key).Msg("failed to remove partial upload")
			}
		}
	}

	for _, f := range files {
		up, err := u.uploadOne(ctx, patientID, kind, createdBy, f)
		if err != nil {
			rollback()
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		out = append(out, *up)
	}

	u.logger.Info().
		Str("patient_id", patientID.String()).
		Str("kind", string(kind)).
		Int("files", len(out)).
		Msg("files uploaded")
	return out, nil
}

func (u *Uploader) uploadOne(ctx context.Context, patientID uuid.UUID, kind Kind, createdBy string, f File) (*Uploaded, error) {
	if strings.TrimSpace(f.Name) == "" {
		return nil, ErrMissingFileName
	}
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(f.ContentType, ";")[0]))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if !AllowedContentTypes[contentType] {
		return nil, ErrInvalidContentType
	}

	data, _, err := readLimited(f.Content, u.maxSize)
	if err != nil {
		return nil, err
	}

	var info *DICOMInfo
	if IsDICOM(f.Name, contentType) {
		if info, err = InspectDICOM(data); err != nil {
			return nil, err
		}
		contentType = "application/dicom"
	}

	meta, err := u.store.Put(ctx, BlobMetadata{
		Key:         ObjectKey(kind, patientID, f.Name, u.now()),
		FileName:    cleanFileName(f.Name),
		ContentType: contentType,
		PatientID:   patientID.String(),
		CreatedBy:   createdBy,
	}, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	up := &Uploaded{
		Key:         meta.Key,
		URL:         URLPrefix + meta.Key,
		FileName:    meta.FileName,
		ContentType: meta.ContentType,
		Size:        meta.Size,
		DICOM:       info,
	}
	if info != nil {
		up.SuggestedType = suggestedImageType(info.Modality)
	}
	return up, nil
}
