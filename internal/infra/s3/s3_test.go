package s3

import "testing"

func TestNewClientEndpointForms(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		wantTLS  bool
		wantErr  bool
	}{
		{endpoint: "localhost:9000", wantTLS: false},
		{endpoint: "localhost:9000", useSSL: true, wantTLS: true},
		{endpoint: "https://s3.example.com/", wantTLS: true},
		{endpoint: "http://minio:9000", useSSL: true, wantTLS: false},
		{endpoint: "  ", wantErr: true},
	}

	for _, tc := range tests {
		client, err := NewClient(Config{Endpoint: tc.endpoint, UseSSL: tc.useSSL, AccessKey: "k", SecretKey: "s"})
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.endpoint)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tc.endpoint, err)
		}
		if got := client.EndpointURL().Scheme == "https"; got != tc.wantTLS {
			t.Fatalf("%q: tls=%v, want %v", tc.endpoint, got, tc.wantTLS)
		}
	}
}
