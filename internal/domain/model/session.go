package model

type UploadStage string

const (
	StageAwaitingCover   UploadStage = "AWAITING_COVER"
	StageAwaitingVideos  UploadStage = "AWAITING_VIDEOS"
	StageAwaitingPublish UploadStage = "AWAITING_PUBLISH"
)

type UploadSession struct {
	AdminID         int64
	RequiredVideos  int
	VideoRefs       []MediaRef
	CoverRef        MediaRef
	Stage           UploadStage
	OriginMessageID int
	// VideoMessageIDs are the admin's own video messages, removed after publication.
	VideoMessageIDs []int
	// BundleID is set once the bundle is committed and the session waits for publication.
	BundleID int64
}

func (s UploadSession) Clone() UploadSession {
	out := s
	out.VideoRefs = append([]MediaRef(nil), s.VideoRefs...)
	out.VideoMessageIDs = append([]int(nil), s.VideoMessageIDs...)
	return out
}

// WorkingMessageIDs lists the admin messages that may be deleted once the bundle is announced.
func (s UploadSession) WorkingMessageIDs() []int {
	ids := make([]int, 0, len(s.VideoMessageIDs)+1)
	if s.OriginMessageID != 0 {
		ids = append(ids, s.OriginMessageID)
	}
	return append(ids, s.VideoMessageIDs...)
}
