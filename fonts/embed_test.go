package fonts

import "testing"

func TestLoad(t *testing.T) {
	for _, name := range []string{"go-regular", "embed:go-bold", "GO-ITALIC.ttf", ForStyle(true, true)} {
		data, err := Load(name)
		if err != nil {
			t.Fatalf("Load(%q): %v", name, err)
		}
		if len(data) < 4 {
			t.Fatalf("Load(%q) 返回的数据过短", name)
		}
	}
	if _, err := Load("Inter-Regular"); err == nil {
		t.Fatalf("未知字体应报错")
	}
}
