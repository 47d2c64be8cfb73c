package security

import (
	"testing"
)

func TestValidateURL(t *testing.T) {
	g := NewSSRFGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "正常なHTTPS URL", url: "https://api.example.com/v1", wantErr: false},
		{name: "正常なHTTP URL", url: "http://api.example.com", wantErr: false},
		{name: "空URL", url: "", wantErr: true},
		{name: "不正なスキーム", url: "file:///etc/passwd", wantErr: true},
		{name: "ftpスキーム", url: "ftp://example.com", wantErr: true},
		{name: "localhost", url: "http://localhost:8080", wantErr: true},
		{name: "ループバックIP", url: "http://127.0.0.1/admin", wantErr: true},
		{name: "プライベートIP 10系", url: "http://10.0.0.5/internal", wantErr: true},
		{name: "プライベートIP 172系", url: "http://172.16.0.1", wantErr: true},
		{name: "プライベートIP 192系", url: "http://192.168.1.1", wantErr: true},
		{name: "クラウドメタデータIP", url: "http://169.254.169.254/latest/meta-data/", wantErr: true},
		{name: "IPv6ループバック", url: "http://[::1]/", wantErr: true},
		{name: "パブリックIP", url: "http://93.184.216.34", wantErr: false},
		{name: "ホストなし", url: "https://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}
