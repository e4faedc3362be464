package expense_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/gig-tracker/internal/expense"
	"github.com/zombor/gig-tracker/internal/extraction"
	"github.com/zombor/gig-tracker/internal/scanning"
)

// ocrStub stands in for the tesseract binary
type ocrStub struct {
	stdout string
	stdin  []byte
}

func (o *ocrStub) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, []byte, error) {
	o.stdin = stdin
	return []byte(o.stdout), nil, nil
}

func receiptPNG() []byte {
	var b bytes.Buffer
	Expect(png.Encode(&b, image.NewRGBA(image.Rect(0, 0, 4, 4)))).To(Succeed())
	return b.Bytes()
}

var _ = Describe("Integration", func() {
	var (
		tempDir     string
		storagePath string
		db          expense.DB
		store       expense.Storage
		ocr         *ocrStub
		server      *expense.Server
		ghServer    *ghttp.Server
		err         error
	)

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()
		storagePath = filepath.Join(tempDir, "receipts")

		db, err = expense.NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())

		store, err = expense.NewLocalStorage(storagePath)
		Expect(err).NotTo(HaveOccurred())

		ocr = &ocrStub{stdout: "CIRCLE K\r\nSTORE #2231\r\n\r\nPUMP   04\n4.204 GAL @ $4.759\n-----\nTOTAL $20.01\n"}
		scanner, err := scanning.NewTesseractWithRunner(scanning.TesseractConfig{}, ocr)
		Expect(err).NotTo(HaveOccurred())

		engine := extraction.NewEngine(extraction.DefaultConfig())
		service := expense.NewService(db, scanner, store, engine)
		server = expense.NewServer(service, expense.BasicAuth{})

		ghServer = ghttp.NewServer()
	})

	AfterEach(func() {
		if ghServer != nil {
			ghServer.Close()
		}
		if db != nil {
			db.Close()
		}
	})

	It("should scan a receipt, save the confirmed expense and clean up on delete", func() {
		// One handler per request
		ghServer.AppendHandlers(
			server.ServeHTTP, // scan
			server.ServeHTTP, // create
			server.ServeHTTP, // file
			server.ServeHTTP, // delete
		)

		// --- Step 1: Scan ---

		photo := receiptPNG()
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "receipt.png")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(photo)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(ghServer.URL()+"/api/expenses/scan", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var suggestion expense.Expense
		Expect(json.NewDecoder(resp.Body).Decode(&suggestion)).To(Succeed())
		Expect(suggestion.Title).To(Equal("CIRCLE K"))
		Expect(suggestion.Amount.String()).To(Equal("20.01"))
		Expect(suggestion.UnitPrice.Decimal.String()).To(Equal("4.759"))
		Expect(suggestion.Quantity.Decimal.String()).To(Equal("4.204"))
		Expect(suggestion.Source).To(Equal(expense.SourceMatched))

		// PNG uploads reach the OCR engine untouched
		Expect(ocr.stdin).To(Equal(photo))

		_, err = store.Get(suggestion.Filename)
		Expect(err).NotTo(HaveOccurred())

		_, err = db.GetExpense(suggestion.ID)
		Expect(err).To(MatchError(expense.ErrNotFound))

		// --- Step 2: Confirm ---

		suggestion.Title = "Circle K #2231"
		saveBody, err := json.Marshal(suggestion)
		Expect(err).NotTo(HaveOccurred())
		saveResp, err := http.Post(ghServer.URL()+"/api/expenses", "application/json", bytes.NewReader(saveBody))
		Expect(err).NotTo(HaveOccurred())
		defer saveResp.Body.Close()
		Expect(saveResp.StatusCode).To(Equal(http.StatusCreated))

		saved, err := db.GetExpense(suggestion.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(saved.Title).To(Equal("Circle K #2231"))
		Expect(saved.Category).To(Equal(expense.CategoryFuel))
		Expect(saved.Source).To(Equal(expense.SourceMatched))

		// --- Step 3: Receipt photo ---

		fileResp, err := http.Get(ghServer.URL() + "/api/expenses/" + suggestion.ID + "/file")
		Expect(err).NotTo(HaveOccurred())
		defer fileResp.Body.Close()
		Expect(fileResp.StatusCode).To(Equal(http.StatusOK))
		Expect(fileResp.Header.Get("Content-Type")).To(Equal("image/png"))

		// --- Step 4: Delete ---

		req, err := http.NewRequest("DELETE", ghServer.URL()+"/api/expenses/"+suggestion.ID, nil)
		Expect(err).NotTo(HaveOccurred())
		delResp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		defer delResp.Body.Close()
		Expect(delResp.StatusCode).To(Equal(http.StatusNoContent))

		Expect(filepath.Join(storagePath, suggestion.Filename)).NotTo(BeAnExistingFile())
		_, err = db.GetExpense(suggestion.ID)
		Expect(err).To(MatchError(expense.ErrNotFound))
	})

	It("should discard the photo when the receipt has no expense", func() {
		ghServer.AppendHandlers(server.ServeHTTP)
		ocr.stdout = "THANK YOU\nCOME AGAIN\n"

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "receipt.png")
		Expect(err).NotTo(HaveOccurred())
		part.Write(receiptPNG())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(ghServer.URL()+"/api/expenses/scan", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))

		entries, err := filepath.Glob(filepath.Join(storagePath, "*"))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})
})
