package syncclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/tarikbc/accountmonitor/models"
	"github.com/tarikbc/accountmonitor/syncclient"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager/v3/lagertest"
	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// scriptedServer is a minimal sync endpoint whose per-RPC behavior the tests
// flip between runs.
type scriptedServer struct {
	srv *httptest.Server

	mu                  sync.Mutex
	config              *models.AlertConfig
	failGet             bool
	failSet             bool
	failToggle          bool
	dropToggle          bool
	toggleWithoutConfig bool
	requestTypes        []string
}

func newScriptedServer() *scriptedServer {
	s := &scriptedServer{config: models.DefaultAlertConfig("user-1")}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var request models.SyncRequest
			if err := conn.ReadJSON(&request); err != nil {
				return
			}
			response := s.handle(&request)
			if response == nil {
				continue
			}
			if err := conn.WriteJSON(response); err != nil {
				return
			}
		}
	}))
	return s
}

func (s *scriptedServer) handle(request *models.SyncRequest) *models.SyncResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestTypes = append(s.requestTypes, request.Type)

	switch request.Type {
	case models.SyncRPCAuthenticate:
		return &models.SyncResponse{Id: request.Id, Success: true, Config: s.config}
	case models.SyncRPCGetAlerts:
		if s.failGet {
			return &models.SyncResponse{Id: request.Id, Success: false, Error: "storage down"}
		}
		return &models.SyncResponse{Id: request.Id, Success: true, Config: s.config}
	case models.SyncRPCSetAlerts:
		if s.failSet {
			return &models.SyncResponse{Id: request.Id, Success: false, Error: "storage down"}
		}
		s.config = request.Config
		return &models.SyncResponse{Id: request.Id, Success: true, Config: s.config}
	case models.SyncRPCToggleAlert:
		if s.dropToggle {
			return nil
		}
		if s.failToggle {
			return &models.SyncResponse{Id: request.Id, Success: false, Error: "toggle unsupported"}
		}
		if s.toggleWithoutConfig {
			return &models.SyncResponse{Id: request.Id, Success: true}
		}
		if s.config.Triggers == nil {
			s.config.Triggers = map[string]bool{}
		}
		s.config.Triggers[request.MetricId] = request.Enabled
		return &models.SyncResponse{Id: request.Id, Success: true, Config: s.config}
	default:
		return &models.SyncResponse{Id: request.Id, Success: false, Error: "unknown request type"}
	}
}

func (s *scriptedServer) ReceivedTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.requestTypes...)
}

func (s *scriptedServer) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *scriptedServer) Close() {
	s.srv.Close()
}

var _ = Describe("Client", func() {
	var (
		logger *lagertest.TestLogger
		server *scriptedServer
		client *syncclient.Client
	)

	BeforeEach(func() {
		logger = lagertest.NewTestLogger("sync-client")
		server = newScriptedServer()
	})

	JustBeforeEach(func() {
		client = syncclient.NewClient(logger, server.URL(), "token", "user-1", 200*time.Millisecond, clock.NewClock())
		Expect(client.Start(context.Background())).To(Succeed())
	})

	AfterEach(func() {
		client.Close()
		server.Close()
	})

	It("seeds its mirror from the authentication ack", func() {
		mirrored := client.Config()
		Expect(mirrored).NotTo(BeNil())
		Expect(mirrored.UserId).To(Equal("user-1"))
	})

	Describe("GetConfig", func() {
		It("adopts the server's copy", func() {
			server.mu.Lock()
			server.config.CooldownMinutes = 45
			server.mu.Unlock()

			config, err := client.GetConfig(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(config.CooldownMinutes).To(Equal(45))
			Expect(client.Config().CooldownMinutes).To(Equal(45))
		})

		It("surfaces a rejected read and keeps the mirror intact", func() {
			server.mu.Lock()
			server.failGet = true
			server.mu.Unlock()

			config, err := client.GetConfig(context.Background())
			Expect(err).To(MatchError(ContainSubstring("get config rejected")))
			Expect(config).To(BeNil())

			mirrored := client.Config()
			Expect(mirrored).NotTo(BeNil())
			Expect(mirrored.UserId).To(Equal("user-1"))
		})
	})

	Describe("SetConfig", func() {
		It("adopts the acked copy as the new authoritative state", func() {
			submitted := models.DefaultAlertConfig("user-1")
			submitted.Thresholds["cpuWarning"] = 60
			Expect(client.SetConfig(context.Background(), submitted)).To(Succeed())
			Expect(client.Config().Thresholds).To(HaveKeyWithValue("cpuWarning", 60.0))
		})

		It("rolls the mirror back when the write is rejected", func() {
			server.mu.Lock()
			server.failSet = true
			server.mu.Unlock()

			submitted := models.DefaultAlertConfig("user-1")
			submitted.CooldownMinutes = 99
			Expect(client.SetConfig(context.Background(), submitted)).NotTo(Succeed())
			Expect(client.Config().CooldownMinutes).To(Equal(models.DefaultCooldownMinutes))
		})
	})

	Describe("ToggleAlert", func() {
		It("uses the toggle RPC and adopts the returned config", func() {
			config, err := client.ToggleAlert(context.Background(), "disconnection", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(config.Triggers).To(HaveKeyWithValue("disconnection", false))
			Expect(server.ReceivedTypes()).To(Equal([]string{
				models.SyncRPCAuthenticate,
				models.SyncRPCToggleAlert,
			}))
		})

		Context("when the ack carries no config", func() {
			BeforeEach(func() {
				server.toggleWithoutConfig = true
			})

			It("merges locally and upserts the full config", func() {
				config, err := client.ToggleAlert(context.Background(), "errorRate", false)
				Expect(err).NotTo(HaveOccurred())
				Expect(config.Triggers).To(HaveKeyWithValue("errorRate", false))
				Expect(server.ReceivedTypes()).To(ContainElement(models.SyncRPCSetAlerts))
			})
		})

		Context("when the toggle RPC is rejected", func() {
			BeforeEach(func() {
				server.failToggle = true
			})

			It("pushes a merged full config instead", func() {
				config, err := client.ToggleAlert(context.Background(), "disconnection", false)
				Expect(err).NotTo(HaveOccurred())
				Expect(config.Triggers).To(HaveKeyWithValue("disconnection", false))
				Expect(server.ReceivedTypes()).To(ContainElement(models.SyncRPCSetAlerts))
			})
		})

		Context("when the toggle ack never arrives", func() {
			BeforeEach(func() {
				server.dropToggle = true
			})

			It("times out and recovers through the set path", func() {
				config, err := client.ToggleAlert(context.Background(), "disconnection", false)
				Expect(err).NotTo(HaveOccurred())
				Expect(config.Triggers).To(HaveKeyWithValue("disconnection", false))
				Expect(server.ReceivedTypes()).To(ContainElement(models.SyncRPCSetAlerts))
			})
		})

		Context("when every path fails", func() {
			BeforeEach(func() {
				server.failToggle = true
				server.failSet = true
			})

			It("restores the authoritative mirror and reports the error", func() {
				_, err := client.ToggleAlert(context.Background(), "disconnection", false)
				Expect(err).To(HaveOccurred())

				mirrored := client.Config()
				Expect(mirrored.Triggers).NotTo(HaveKey("disconnection"))
			})
		})
	})
})
