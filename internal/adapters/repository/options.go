package repository

// Option applies a configuration option to the SQLiteStore.
type Option func(*SQLiteStore)

// WithBatchSize caps the number of samples written per transaction.
func WithBatchSize(n int) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.batchSize = n
		}
	}
}
