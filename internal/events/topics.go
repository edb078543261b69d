package events

const (
	TopicRawFrameIn  = "raw.frame.in"
	TopicRawFrameOut = "raw.frame.out"
	TopicMessage     = "openthings.message"
	TopicRunStatus   = "run.status"
)
