// order_websocket.go
package orderControllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sitsofe/pos-terminal/catalog"
	cartControllers "github.com/sitsofe/pos-terminal/controllers/cart"
	"github.com/sitsofe/pos-terminal/logger"
	"github.com/sitsofe/pos-terminal/models"
	"github.com/sitsofe/pos-terminal/store"
	"github.com/sitsofe/pos-terminal/terminal"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var (
	wsClients   = make(map[*wsClient]bool)
	wsClientsMu sync.Mutex
)

// wsMessage is every frame sent to the UI.
type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// wsInbound is every frame the UI sends: search text edits, scroll position and scans.
type wsInbound struct {
	Type  string `json:"type"`
	Text  string `json:"text,omitempty"`
	Index int    `json:"index,omitempty"`
	Code  string `json:"code,omitempty"`
}

type productsPage struct {
	Search    string           `json:"search"`
	Items     []models.Product `json:"items"`
	Exhausted bool             `json:"exhausted"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsClient) send(typ string, data interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(wsMessage{Type: typ, Data: data})
}

// GET /ws
// TerminalWebSocketHandler streams cart, notices, sync and checkout state to the UI and
// accepts search, scroll and scan events from it.
func TerminalWebSocketHandler(t *terminal.Terminal) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := &wsClient{conn: conn}
		wsClientsMu.Lock()
		wsClients[client] = true
		wsClientsMu.Unlock()
		defer func() {
			wsClientsMu.Lock()
			delete(wsClients, client)
			wsClientsMu.Unlock()
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		searcher := t.NewSearcher(ctx)
		defer searcher.Close()

		go pump(ctx, t, client, searcher)

		for {
			var in wsInbound
			if err := conn.ReadJSON(&in); err != nil {
				break
			}
			switch in.Type {
			case "search":
				searcher.SetText(in.Text)
			case "scroll":
				go sendPage(ctx, client, searcher.Current(), in.Index)
			case "scan":
				_, _, _ = t.Scanner.Ingest(ctx, in.Code)
			}
		}
	}
}

// pump forwards every observable the UI renders until ctx is done.
func pump(ctx context.Context, t *terminal.Terminal, client *wsClient, searcher *catalog.Searcher) {
	log := logger.Component("ws")

	carts, stopCart := t.Cart.Changes().Subscribe()
	defer stopCart()
	notices, stopNotices := t.Notices.Subscribe()
	defer stopNotices()
	refreshing, stopRefreshing := t.Sync.Refreshing().Subscribe()
	defer stopRefreshing()
	busy, stopBusy := t.Checkout.Busy().Subscribe()
	defer stopBusy()
	pagers, stopPagers := searcher.Pagers().Subscribe()
	defer stopPagers()

	wasRefreshing := false
	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case snap := <-carts:
			view, verr := cartControllers.BuildView(ctx, t, snap)
			if verr != nil {
				log.WithError(verr).Warn("⚠️ [WS] could not price cart")
				continue
			}
			err = client.send("cart", view)
		case n := <-notices:
			err = client.send("notice", n)
		case r := <-refreshing:
			err = client.send("refreshing", r)
			if wasRefreshing && !r {
				// the catalog under the current search was replaced
				searcher.Reset()
			}
			wasRefreshing = r
		case b := <-busy:
			err = client.send("busy", b)
		case p := <-pagers:
			go sendPage(ctx, client, p, 0)
		}
		if err != nil {
			log.WithError(err).Debug("[WS] write failed, closing feed")
			return
		}
	}
}

func sendPage(ctx context.Context, client *wsClient, p *store.Pager, index int) {
	if _, _, err := p.Get(ctx, index); err != nil {
		return
	}
	p.Wait()
	_ = client.send("products", productsPage{
		Search:    p.Search(),
		Items:     p.Loaded(),
		Exhausted: p.Exhausted(),
	})
}

func broadcastSale(outcome models.SaleOutcome) {
	for _, client := range connectedClients() {
		_ = client.send("sale", outcome)
	}
}

// connectedClients copies the registry so writes happen outside the lock.
func connectedClients() []*wsClient {
	wsClientsMu.Lock()
	defer wsClientsMu.Unlock()
	out := make([]*wsClient, 0, len(wsClients))
	for client := range wsClients {
		out = append(out, client)
	}
	return out
}
