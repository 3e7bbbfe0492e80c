package renderer

import "github.com/ByLCY/quire/layout"

// Renderer 将布局好的文档输出为最终文件（PDF 字节切片）。
type Renderer interface {
	Render(doc *layout.Document) ([]byte, error)
}

// Measurer 同时负责排版测量与渲染，保证测量与绘制使用同一套字体度量。
type Measurer interface {
	Renderer
	layout.Typesetter
}
