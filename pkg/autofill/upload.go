package autofill

import (
	"context"

	"github.com/entrhq/autofill/pkg/types"
	"github.com/sourcegraph/conc/iter"
)

// UploadOutcome is the result for one upload of a batch.
type UploadOutcome struct {
	Name   string
	Record types.FileRecord
	Err    error
}

// BatchResult holds one outcome per upload, in input order.
type BatchResult struct {
	Outcomes []UploadOutcome
}

// Stored returns the records of the uploads that succeeded.
func (b BatchResult) Stored() []types.FileRecord {
	out := make([]types.FileRecord, 0, len(b.Outcomes))
	for _, o := range b.Outcomes {
		if o.Err == nil {
			out = append(out, o.Record)
		}
	}
	return out
}

// Failed counts the uploads that did not succeed.
func (b BatchResult) Failed() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// UploadFiles stores every upload for profileName and attaches it to the
// profile. Uploads succeed or fail independently. A file whose reference
// cannot be attached is deleted again.
func (s *Service) UploadFiles(ctx context.Context, profileName string, uploads []types.Upload) (BatchResult, error) {
	ok, err := s.dir.Exists(ctx, profileName)
	if err != nil {
		return BatchResult{}, err
	}
	if !ok {
		return BatchResult{}, types.NotFound("autofill.upload", "profile %q not found", profileName)
	}

	outcomes := iter.Map(uploads, func(u *types.Upload) UploadOutcome {
		rec, err := s.upload(ctx, profileName, *u)
		return UploadOutcome{Name: u.Name, Record: rec, Err: err}
	})

	result := BatchResult{Outcomes: outcomes}
	s.log.Infof("uploaded %d of %d files to %q", len(uploads)-result.Failed(), len(uploads), profileName)
	return result, nil
}

func (s *Service) upload(ctx context.Context, profileName string, u types.Upload) (types.FileRecord, error) {
	rec, err := s.files.StoreFile(ctx, u, profileName)
	if err != nil {
		return types.FileRecord{}, err
	}
	if err := s.dir.AttachFile(ctx, profileName, rec.Ref()); err != nil {
		s.log.Warnf("attaching %s to %q failed, removing it: %v", rec.ID, profileName, err)
		if _, derr := s.files.DeleteFile(context.WithoutCancel(ctx), rec.ID); derr != nil {
			s.log.Errorf("failed to remove %s: %v", rec.ID, derr)
		}
		return types.FileRecord{}, err
	}
	return rec, nil
}
