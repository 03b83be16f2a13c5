package auth

// Known OAuth scopes used by the dedup endpoints.
const (
	ScopeMergesRead   = "merges:read"
	ScopeMergesReview = "merges:review"
	ScopeMergesDetect = "merges:detect"
)
