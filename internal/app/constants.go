package app

const (
	Name           = "rfmgo"
	ConfigFilename = "config.json"
	DBFilename     = "sensors.db"
	LogFilename    = "rfmgo.log"
	WriterCapacity = 256
)
