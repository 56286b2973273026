package security

import "testing"

func TestValidateEndpointURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"public literal", "https://93.184.216.34/upload", false},
		{"bad scheme", "ftp://example.com/predict", true},
		{"no host", "https://", true},
		{"localhost", "http://localhost:8000/predict", true},
		{"loopback literal", "http://127.0.0.1:5000/predict", true},
		{"private literal", "http://10.0.0.5/predict", true},
		{"link-local literal", "http://169.254.169.254/latest/meta-data", true},
		{"unspecified literal", "http://0.0.0.0/predict", true},
		{"cloud metadata host", "http://metadata.google.internal/computeMetadata", true},
		{"unparseable", "http://exa mple.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEndpointURL(tt.url)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateEndpointURL(%q) = nil, want error", tt.url)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateEndpointURL(%q) = %v, want nil", tt.url, err)
			}
		})
	}
}
