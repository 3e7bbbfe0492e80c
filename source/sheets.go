// Package source 负责把外部输入（表格文件、网页、Markdown、PDF 文件）读取为
// content 包可以消费的原始数据。
package source

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ByLCY/quire/errs"
)

// Sheet 是工作簿中的一张表，Rows 保持原始顺序，单元格未做清洗。
type Sheet struct {
	Name string
	Rows [][]string
}

const csvSheetName = "Sheet1"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadSheets 按扩展名解析表格文件。支持 .csv 与 .xlsx；旧版二进制 .xls 不支持。
func ReadSheets(filename string, data []byte) ([]Sheet, error) {
	const op = "source.sheets"
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		rows, err := readCSV(data)
		if err != nil {
			return nil, errs.Wrap(errs.KindExtraction, op, err, "CSV 解析失败")
		}
		return []Sheet{{Name: csvSheetName, Rows: rows}}, nil
	case ".xlsx":
		sheets, err := readXLSX(data)
		if err != nil {
			return nil, errs.Wrap(errs.KindExtraction, op, err, "xlsx 解析失败")
		}
		if len(sheets) == 0 {
			return nil, errs.Extraction(op, "No sheets found in the Excel file")
		}
		return sheets, nil
	case ".xls":
		return nil, errs.Validation(op, "legacy .xls workbooks are not supported, save the file as .xlsx")
	default:
		return nil, errs.Validation(op, "unsupported table file type %q", ext)
	}
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

// xlsx 的最小 XML 结构，仅保留读取单元格文本所需的字段。
type (
	workbookXML struct {
		Sheets []struct {
			Name string `xml:"name,attr"`
			RID  string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
		} `xml:"sheets>sheet"`
	}
	relationshipsXML struct {
		Items []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	sharedStringsXML struct {
		Items []richTextXML `xml:"si"`
	}
	richTextXML struct {
		T    string `xml:"t"`
		Runs []struct {
			T string `xml:"t"`
		} `xml:"r"`
	}
	worksheetXML struct {
		Rows []struct {
			R     int `xml:"r,attr"`
			Cells []struct {
				Ref    string       `xml:"r,attr"`
				Type   string       `xml:"t,attr"`
				Value  string       `xml:"v"`
				Inline *richTextXML `xml:"is"`
			} `xml:"c"`
		} `xml:"sheetData>row"`
	}
)

func (rt richTextXML) text() string {
	if len(rt.Runs) == 0 {
		return rt.T
	}
	var b strings.Builder
	b.WriteString(rt.T)
	for _, r := range rt.Runs {
		b.WriteString(r.T)
	}
	return b.String()
}

func readXLSX(data []byte) ([]Sheet, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("打开 ZIP 失败: %w", err)
	}
	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var wb workbookXML
	if err := decodeXMLPart(files, "xl/workbook.xml", &wb, true); err != nil {
		return nil, err
	}
	var rels relationshipsXML
	if err := decodeXMLPart(files, "xl/_rels/workbook.xml.rels", &rels, true); err != nil {
		return nil, err
	}
	var sst sharedStringsXML
	if err := decodeXMLPart(files, "xl/sharedStrings.xml", &sst, false); err != nil {
		return nil, err
	}
	shared := make([]string, len(sst.Items))
	for i, si := range sst.Items {
		shared[i] = si.text()
	}
	targets := make(map[string]string, len(rels.Items))
	for _, rel := range rels.Items {
		targets[rel.ID] = rel.Target
	}

	sheets := make([]Sheet, 0, len(wb.Sheets))
	for _, s := range wb.Sheets {
		target, ok := targets[s.RID]
		if !ok {
			return nil, fmt.Errorf("工作表 %s 缺少关系 %s", s.Name, s.RID)
		}
		var ws worksheetXML
		if err := decodeXMLPart(files, sheetPath(target), &ws, true); err != nil {
			return nil, err
		}
		rows, err := sheetRows(ws, shared)
		if err != nil {
			return nil, fmt.Errorf("工作表 %s: %w", s.Name, err)
		}
		sheets = append(sheets, Sheet{Name: s.Name, Rows: rows})
	}
	return sheets, nil
}

func sheetPath(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Join("xl", target)
}

func decodeXMLPart(files map[string]*zip.File, name string, v any, required bool) error {
	f, ok := files[name]
	if !ok {
		if required {
			return fmt.Errorf("缺少 %s", name)
		}
		return nil
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("打开 %s 失败: %w", name, err)
	}
	defer rc.Close()
	if err := xml.NewDecoder(io.LimitReader(rc, maxPartSize)).Decode(v); err != nil {
		return fmt.Errorf("解析 %s 失败: %w", name, err)
	}
	return nil
}

// 单个 XML 部件的解压上限，防止压缩炸弹。
const maxPartSize = 256 << 20

// Excel 工作表的行列上限（1048576 行，列 A..XFD）。
const (
	maxSheetRows    = 1 << 20
	maxSheetColumns = 1 << 14
)

// sheetRows 将稀疏的单元格展开为稠密网格，行与列的空洞补空串。
func sheetRows(ws worksheetXML, shared []string) ([][]string, error) {
	var rows [][]string
	for _, row := range ws.Rows {
		idx := len(rows)
		if row.R > 0 {
			idx = row.R - 1
		}
		if row.R < 0 || idx >= maxSheetRows {
			return nil, fmt.Errorf("行号 %d 超出工作表范围（最多 %d 行）", idx+1, maxSheetRows)
		}
		for len(rows) < idx {
			rows = append(rows, nil)
		}
		var cells []string
		for i, c := range row.Cells {
			col := i
			if c.Ref != "" {
				var err error
				if col, err = columnIndex(c.Ref); err != nil {
					return nil, err
				}
			}
			if col >= maxSheetColumns {
				return nil, fmt.Errorf("第 %d 行的列数超出工作表范围", idx+1)
			}
			for len(cells) <= col {
				cells = append(cells, "")
			}
			switch c.Type {
			case "s":
				n, err := strconv.Atoi(strings.TrimSpace(c.Value))
				if err != nil || n < 0 || n >= len(shared) {
					return nil, fmt.Errorf("单元格 %s 引用了无效的共享字符串 %q", c.Ref, c.Value)
				}
				cells[col] = shared[n]
			case "inlineStr":
				if c.Inline != nil {
					cells[col] = c.Inline.text()
				}
			case "b":
				cells[col] = "FALSE"
				if c.Value == "1" {
					cells[col] = "TRUE"
				}
			default:
				cells[col] = c.Value
			}
		}
		if idx < len(rows) {
			rows[idx] = cells
		} else {
			rows = append(rows, cells)
		}
	}
	return rows, nil
}

// columnIndex 把 "AB12" 这样的引用转换为 0 起始的列号。
func columnIndex(ref string) (int, error) {
	col := 0
	n := 0
	for _, r := range ref {
		if r >= 'A' && r <= 'Z' {
			col = col*26 + int(r-'A'+1)
		} else if r >= 'a' && r <= 'z' {
			col = col*26 + int(r-'a'+1)
		} else {
			break
		}
		n++
		if col > maxSheetColumns {
			return 0, fmt.Errorf("单元格引用 %q 超出最大列 XFD", ref)
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("无效的单元格引用 %q", ref)
	}
	return col - 1, nil
}
