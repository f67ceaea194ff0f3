package domain

// NotifyTarget is one danmaku credential the fan-out posts through
type NotifyTarget struct {
	Label     string
	AccessKey string
	AppKey    string
	AppSecret string
	RoomID    string // Room the acknowledgment is posted in
}

// Name returns the label, or the room id when unlabeled
func (t NotifyTarget) Name() string {
	if t.Label != "" {
		return t.Label
	}
	return t.RoomID
}
