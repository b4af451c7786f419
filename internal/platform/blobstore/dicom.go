package blobstore

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// DICOMInfo is what the portal reads from an uploaded DICOM object.
type DICOMInfo struct {
	Modality  string `json:"modality,omitempty"`
	StudyDate string `json:"study_date,omitempty"`
	BodyPart  string `json:"body_part,omitempty"`
}

// IsDICOM reports whether an upload should be treated as DICOM.
func IsDICOM(fileName, contentType string) bool {
	switch strings.ToLower(contentType) {
	case "application/dicom", "image/dicom":
		return true
	}
	return strings.EqualFold(path.Ext(fileName), ".dcm")
}

// InspectDICOM parses data, skipping pixel data, and returns the modality,
// study date (YYYY-MM-DD) and body part. Data that does not parse as DICOM
// fails with ErrInvalidDICOM.
func InspectDICOM(data []byte) (*DICOMInfo, error) {
	ds, err := dicom.Parse(bytes.NewReader(data), int64(len(data)), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDICOM, err)
	}

	info := &DICOMInfo{
		Modality: firstString(ds, tag.Modality),
		BodyPart: firstString(ds, tag.BodyPartExamined),
	}
	if d := firstString(ds, tag.StudyDate); len(d) == 8 {
		info.StudyDate = d[:4] + "-" + d[4:6] + "-" + d[6:]
	}
	return info, nil
}

func firstString(ds dicom.Dataset, t tag.Tag) string {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return ""
	}
	vals, ok := el.Value.GetValue().([]string)
	if !ok || len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0])
}

// suggestedImageType maps a DICOM modality code to the image type shown in
// the record.
func suggestedImageType(modality string) string {
	switch strings.ToUpper(modality) {
	case "CR", "DX":
		return "X-Ray"
	case "CT":
		return "CT"
	case "MR":
		return "MRI"
	case "US":
		return "Ultrasound"
	case "MG":
		return "Mammography"
	case "":
		return ""
	default:
		return strings.ToUpper(modality)
	}
}
