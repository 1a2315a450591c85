package rekognition

// Config holds configuration for AWS Rekognition provider
type Config struct {
	// Region is the AWS region where Rekognition service will be used (e.g., "us-east-1")
	Region string

	// MinConfidence is passed to DetectLabels, in percent
	MinConfidence float32

	// MaxLabels caps DetectLabels results
	MaxLabels int32
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Region:        "us-east-1",
		MinConfidence: 40,
		MaxLabels:     25,
	}
}
