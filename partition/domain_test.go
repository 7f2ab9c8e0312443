package partition

import "testing"

func TestDomain(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.example.com/path", "example.com"},
		{"https://sub.deep.example.co.uk/x", "example.co.uk"},
		{"http://192.168.1.1:8080/", "192.168.1.1"},
		{"https://localhost/", "localhost"},
	}
	for _, c := range cases {
		got, err := Domain(c.url)
		if err != nil {
			t.Fatalf("Domain(%q): %v", c.url, err)
		}
		if got != c.want {
			t.Errorf("Domain(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestDomainInvalid(t *testing.T) {
	if _, err := Domain("://bad url"); err == nil {
		t.Fatalf("expected error for malformed url")
	}
}

func TestClassifyFile(t *testing.T) {
	cases := []struct {
		domain, key string
		want        FileKind
	}{
		{"example.com", "get/2024/08/example.com.parquet", FileCanonical},
		{"example.com", "get/2024/08/example.com.9f2c.parquet", FilePart},
		{"example.com", "get/2024/08/example.com2.parquet", FileUnrelated},
		{"example.com", "get/2024/08/other.com.parquet", FileUnrelated},
		{"example.com", "get/2024/08/example.com.9f2c.extra.parquet", FileUnrelated},
	}
	for _, c := range cases {
		if got := ClassifyFile(c.domain, c.key); got != c.want {
			t.Errorf("ClassifyFile(%q, %q) = %v, want %v", c.domain, c.key, got, c.want)
		}
	}
}
