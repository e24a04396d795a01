package service

import "context"

// TxRepositories are the stores an upload writes atomically.
type TxRepositories interface {
	Documents() DocumentRepository
	IngestJobs() IngestJobRepository
}

// TxRunner runs fn in one transaction; fn's error aborts it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
