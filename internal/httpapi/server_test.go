package httpapi_test

import (
	"context"
	"net"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"roadnerd/internal/httpapi"
)

var _ = Describe("Server", func() {
	It("serves until the context is cancelled", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		h := httpapi.NewHandler(&mockPipeline{}, nil, nil, "test", nil)
		srv := httpapi.NewServer(ln.Addr().String(), httpapi.NewRouter(h, nil), nil)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- srv.Serve(ctx, ln) }()

		Eventually(func() int {
			resp, err := http.Get("http://" + ln.Addr().String() + "/api/status")
			if err != nil {
				return 0
			}
			defer resp.Body.Close()
			return resp.StatusCode
		}).WithTimeout(2 * time.Second).Should(Equal(http.StatusOK))

		cancel()
		Eventually(done).WithTimeout(5 * time.Second).Should(Receive(BeNil()))
	})
})
