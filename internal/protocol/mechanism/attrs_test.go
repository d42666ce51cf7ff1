package mechanism

import "testing"

func TestParseAttributesKeepsPadding(t *testing.T) {
	attrs, err := parseAttributes("r=abc,s=QSXCR+Q6sek8bf92==,i=4096")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v, _ := attrs.get('s'); v != "QSXCR+Q6sek8bf92==" {
		t.Fatalf("salt value truncated: %q", v)
	}
	if _, ok := attrs.get('x'); ok {
		t.Fatalf("unexpected attribute x")
	}
}

func TestSplitGS2(t *testing.T) {
	header, bare, err := splitGS2("n,a=admin,n=user,r=abc")
	if err != nil || header != "n,a=admin," || bare != "n=user,r=abc" {
		t.Fatalf("header=%q bare=%q err=%v", header, bare, err)
	}
	if _, _, err := splitGS2("n=user"); err == nil {
		t.Fatalf("expected missing header error")
	}
}

func TestWithoutProof(t *testing.T) {
	got, err := withoutProof("c=biws,r=abc,p=xyz=")
	if err != nil || got != "c=biws,r=abc" {
		t.Fatalf("got=%q err=%v", got, err)
	}
}
