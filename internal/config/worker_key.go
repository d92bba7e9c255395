package config

type WorkerKeyStruct struct {
	PersistAnswersQueue string
	ExpiryLock          string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue: "persist_answers_queue",
	ExpiryLock:          "expiry_worker_lock",
}
