package blobstore

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var testPatient = uuid.MustParse("6f1c2a4e-8b1d-4c3e-9f2a-1b2c3d4e5f60")

func newTestUploader(store BlobStore) *Uploader {
	u := NewUploader(store, 1024, zerolog.Nop())
	u.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return u
}

func TestObjectKey(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	tests := []struct {
		kind Kind
		name string
		want string
	}{
		{KindConsultation, "report.pdf", "consultations/" + testPatient.String() + "/1700000000123_report.pdf"},
		{KindMedicalImage, "chest x ray.png", "medical-images/" + testPatient.String() + "/1700000000123_chest_x_ray.png"},
		{KindMedicalImage, `C:\scans\ct.dcm`, "medical-images/" + testPatient.String() + "/1700000000123_ct.dcm"},
		{KindConsultation, "../../etc/passwd", "consultations/" + testPatient.String() + "/1700000000123_passwd"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.kind, testPatient, tt.name, at); got != tt.want {
			t.Errorf("ObjectKey(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPatientFromKey(t *testing.T) {
	id, ok := PatientFromKey("consultations/" + testPatient.String() + "/1_a.pdf")
	if !ok || id != testPatient {
		t.Errorf("expected %s, got %s (%v)", testPatient, id, ok)
	}
	if _, ok := PatientFromKey("consultations/not-a-uuid/1_a.pdf"); ok {
		t.Error("expected invalid patient segment to be rejected")
	}
	if _, ok := PatientFromKey("flat-key"); ok {
		t.Error("expected short key to be rejected")
	}
}

func TestParseKind(t *testing.T) {
	if k, err := ParseKind("medical-image"); err != nil || k != KindMedicalImage {
		t.Errorf("unexpected result %q %v", k, err)
	}
	if _, err := ParseKind("xray"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestUploader_Upload(t *testing.T) {
	store := NewInMemoryBlobStore(0)
	u := newTestUploader(store)

	out, err := u.Upload(context.Background(), testPatient, KindConsultation, "doctor-1", []File{
		{Name: "referral letter.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF-1.4")},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(out))
	}
	wantKey := "consultations/" + testPatient.String() + "/1700000000000_referral_letter.pdf"
	if out[0].Key != wantKey {
		t.Errorf("expected key %q, got %q", wantKey, out[0].Key)
	}
	if out[0].URL != URLPrefix+wantKey {
		t.Errorf("unexpected url %q", out[0].URL)
	}
	_, meta, err := store.Get(context.Background(), wantKey)
	if err != nil {
		t.Fatal(err)
	}
	if meta.PatientID != testPatient.String() || meta.CreatedBy != "doctor-1" {
		t.Errorf("unexpected stored metadata %+v", meta)
	}
}

func TestUploader_DICOM(t *testing.T) {
	store := NewInMemoryBlobStore(0)
	u := NewUploader(store, 0, zerolog.Nop())

	out, err := u.Upload(context.Background(), testPatient, KindMedicalImage, "doctor-1", []File{
		{Name: "head.dcm", ContentType: "application/octet-stream", Content: bytes.NewReader(buildDICOM(t, "MR", "20231201"))},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].ContentType != "application/dicom" {
		t.Errorf("expected application/dicom, got %q", out[0].ContentType)
	}
	if out[0].SuggestedType != "MRI" {
		t.Errorf("expected suggested type MRI, got %q", out[0].SuggestedType)
	}
	if out[0].DICOM == nil || out[0].DICOM.StudyDate != "2023-12-01" {
		t.Errorf("unexpected dicom info %+v", out[0].DICOM)
	}
}

func TestUploader_Rejections(t *testing.T) {
	tests := []struct {
		name string
		file File
		want error
	}{
		{"content type", File{Name: "run.sh", ContentType: "application/x-sh", Content: strings.NewReader("#!")}, ErrInvalidContentType},
		{"too large", File{Name: "big.txt", ContentType: "text/plain", Content: strings.NewReader(strings.Repeat("x", 2048))}, ErrFileTooLarge},
		{"bad dicom", File{Name: "scan.dcm", ContentType: "application/dicom", Content: strings.NewReader("nope")}, ErrInvalidDICOM},
		{"missing name", File{Name: " ", ContentType: "text/plain", Content: strings.NewReader("x")}, ErrMissingFileName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newTestUploader(NewInMemoryBlobStore(0))
			_, err := u.Upload(context.Background(), testPatient, KindConsultation, "d", []File{tt.file})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestUploader_RollsBackOnFailure(t *testing.T) {
	store := NewInMemoryBlobStore(0)
	u := newTestUploader(store)

	_, err := u.Upload(context.Background(), testPatient, KindConsultation, "d", []File{
		{Name: "a.txt", ContentType: "text/plain", Content: strings.NewReader("a")},
		{Name: "b.exe", ContentType: "application/x-msdownload", Content: strings.NewReader("b")},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	items, _ := store.List(context.Background(), "consultations/")
	if len(items) != 0 {
		t.Errorf("expected partial upload to be removed, found %d objects", len(items))
	}
}

func TestUploader_NoFiles(t *testing.T) {
	u := newTestUploader(NewInMemoryBlobStore(0))
	if _, err := u.Upload(context.Background(), testPatient, KindConsultation, "d", nil); err == nil {
		t.Error("expected error for empty upload")
	}
}
