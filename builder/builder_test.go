package builder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/hyeonwoo/redactkit/fonts"
	"github.com/hyeonwoo/redactkit/ir/raw"
	"github.com/hyeonwoo/redactkit/ir/semantic"
	"github.com/hyeonwoo/redactkit/security"
)

func buildPages(t *testing.T, doc *raw.Document) *semantic.Document {
	t.Helper()
	sem, err := semantic.Build(context.Background(), doc, security.Limits{})
	if err != nil {
		t.Fatalf("semantic.Build: %v", err)
	}
	return sem
}

func TestBuildEmptyDocumentFails(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Error("empty document accepted")
	}
}

func TestBuildSimplePage(t *testing.T) {
	doc, err := New().
		SetInfo("Title", "test doc").
		NewPage(612, 792).
		FillRect(10, 20, 100, 50, Color{R: 1}).
		DrawText("Hello", 72, 720, TextOptions{}).
		Finish().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	sem := buildPages(t, doc)
	if sem.PageCount() != 1 {
		t.Fatalf("PageCount = %d", sem.PageCount())
	}
	page, _ := sem.Page(1)
	if page.MediaBox.Width() != 612 || page.MediaBox.Height() != 792 {
		t.Errorf("MediaBox = %+v", page.MediaBox)
	}
	content := string(page.Contents)
	if !strings.Contains(content, "10 20 100 50 re f") {
		t.Errorf("missing fill rect in %q", content)
	}
	if !strings.Contains(content, "(Hello) Tj") {
		t.Errorf("missing text in %q", content)
	}
	if page.Resources == nil {
		t.Fatal("page has no resources")
	}
	fontsDict, ok := raw.DictDict(page.Resources, "Font")
	if !ok {
		t.Fatal("no Font resources")
	}
	if _, ok := fontsDict.Get(raw.NameLiteral("F1")); !ok {
		t.Error("Helvetica resource missing")
	}
	if doc.Metadata.Title != "test doc" {
		t.Errorf("Metadata.Title = %q", doc.Metadata.Title)
	}
}

func TestDrawTextUnregisteredFontFails(t *testing.T) {
	_, err := New().
		NewPage(612, 792).
		DrawText("hi", 0, 0, TextOptions{Font: "missing"}).
		Finish().
		Build()
	if err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Errorf("err = %v", err)
	}
}

func TestEmbedTrueTypeFont(t *testing.T) {
	tt, err := fonts.LoadTrueType("", goregular.TTF)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := New().
		RegisterFont("body", tt).
		NewPage(612, 792).
		DrawText("Av", 72, 700, TextOptions{Font: "body", Size: 14}).
		Finish().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var type0 *raw.DictObj
	for _, obj := range doc.Objects {
		d, ok := obj.(*raw.DictObj)
		if !ok {
			continue
		}
		if st, _ := raw.DictName(d, "Subtype"); st == "Type0" {
			type0 = d
		}
	}
	if type0 == nil {
		t.Fatal("no Type0 font object")
	}
	if enc, _ := raw.DictName(type0, "Encoding"); enc != "Identity-H" {
		t.Errorf("Encoding = %q", enc)
	}
	descRef, ok := raw.DictArray(type0, "DescendantFonts")
	if !ok || descRef.Len() != 1 {
		t.Fatal("missing DescendantFonts")
	}
	descObj, _ := descRef.Get(0)
	descendant, ok := doc.Objects[descObj.(raw.Reference).Ref()].(*raw.DictObj)
	if !ok {
		t.Fatal("descendant not resolvable")
	}
	fdRef, ok := raw.DictRef(descendant, "FontDescriptor")
	if !ok {
		t.Fatal("no FontDescriptor")
	}
	fd := doc.Objects[fdRef].(*raw.DictObj)
	ffRef, ok := raw.DictRef(fd, "FontFile2")
	if !ok {
		t.Fatal("no FontFile2")
	}
	if _, ok := doc.Objects[ffRef].(*raw.StreamObj); !ok {
		t.Error("FontFile2 is not a stream")
	}

	sem := buildPages(t, doc)
	page, _ := sem.Page(1)
	content := string(page.Contents)
	if !strings.Contains(content, "Tf") || !strings.Contains(content, "> Tj") {
		t.Errorf("no hex-encoded show operator in %q", content)
	}
}

func TestImportPagePreservesContent(t *testing.T) {
	src, err := New().
		NewPage(595, 842).
		FillRect(0, 0, 100, 100, Color{B: 1}).
		Finish().
		Build()
	if err != nil {
		t.Fatal(err)
	}
	srcSem := buildPages(t, src)
	srcPage, _ := srcSem.Page(1)

	doc, err := New().
		ImportPage(src, srcPage.Ref).
		NewPage(612, 792).
		DrawText("appended", 10, 10, TextOptions{}).
		Finish().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	sem := buildPages(t, doc)
	if sem.PageCount() != 2 {
		t.Fatalf("PageCount = %d, want 2", sem.PageCount())
	}
	p1, _ := sem.Page(1)
	if !bytes.Contains(p1.Contents, []byte("0 0 100 100 re f")) {
		t.Errorf("imported page lost content: %q", p1.Contents)
	}
	if p1.MediaBox.Width() != 595 {
		t.Errorf("imported MediaBox = %+v", p1.MediaBox)
	}
	p2, _ := sem.Page(2)
	if !bytes.Contains(p2.Contents, []byte("(appended) Tj")) {
		t.Errorf("new page content = %q", p2.Contents)
	}
}

func TestFromImageAlpha(t *testing.T) {
	opaque := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range opaque.Pix {
		opaque.Pix[i] = 0xFF
	}
	im, err := FromImage(opaque)
	if err != nil {
		t.Fatal(err)
	}
	if im.SMask != nil {
		t.Error("opaque image got a soft mask")
	}
	if im.ColorSpace != "DeviceRGB" || im.Filter != "FlateDecode" {
		t.Errorf("stream = %+v", im)
	}

	translucent := image.NewRGBA(image.Rect(0, 0, 2, 2))
	translucent.Set(0, 0, color.RGBA{R: 255, A: 128})
	im, err = FromImage(translucent)
	if err != nil {
		t.Fatal(err)
	}
	if im.SMask == nil {
		t.Error("translucent image missing soft mask")
	}
}

func TestDrawImageWiresXObject(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	im, err := FromImage(img)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := New().
		NewPage(612, 792).
		DrawImage(im, 100, 200, 300, 150).
		Finish().
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	sem := buildPages(t, doc)
	page, _ := sem.Page(1)
	if !strings.Contains(string(page.Contents), "/Im1 Do") {
		t.Errorf("no Do operator: %q", page.Contents)
	}
	xobjects, ok := raw.DictDict(page.Resources, "XObject")
	if !ok {
		t.Fatal("no XObject resources")
	}
	imObj, ok := xobjects.Get(raw.NameLiteral("Im1"))
	if !ok {
		t.Fatal("Im1 missing")
	}
	st, ok := doc.Objects[imObj.(raw.Reference).Ref()].(*raw.StreamObj)
	if !ok {
		t.Fatal("Im1 is not a stream")
	}
	if w, _ := raw.DictInt(st.Dict, "Width"); w != 4 {
		t.Errorf("Width = %d", w)
	}
}

func TestMeasureTextHelvetica(t *testing.T) {
	p := New().NewPage(612, 792)
	short := p.MeasureText("il", TextOptions{Size: 10})
	wide := p.MeasureText("WM", TextOptions{Size: 10})
	if short <= 0 || wide <= short {
		t.Errorf("widths: il=%v WM=%v", short, wide)
	}
}

func TestNumFormatting(t *testing.T) {
	cases := map[float64]string{
		0:       "0",
		1:       "1",
		0.5:     "0.5",
		66.666:  "66.67",
		-0.001:  "0",
		612.001: "612",
	}
	for in, want := range cases {
		if got := num(in); got != want {
			t.Errorf("num(%v) = %q, want %q", in, got, want)
		}
	}
}
