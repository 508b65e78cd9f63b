package utils

// Helper function to convert int64 to *int64
func Int64Ptr(i int64) *int64 {
	return &i
}

// Helper function to convert bool to *bool
func BoolPtr(b bool) *bool {
	return &b
}
