package webserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/OneOfOne/xxhash"
	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"github.com/stake-plus/bobu-forum/src/forum/markdown"
	"github.com/stake-plus/bobu-forum/src/forum/pager"
	"github.com/stake-plus/bobu-forum/src/forum/service"
	"github.com/stake-plus/bobu-forum/src/forum/types"
)

var sanitizer = bluemonday.UGCPolicy()

// renderHTML turns Markdown into sanitized preview markup.
func renderHTML(md string) string {
	return sanitizer.Sanitize(markdown.ToHTML(md))
}

type Proposals struct {
	svc     *service.Service
	tracker *pager.Tracker
}

func NewProposals(svc *service.Service, tracker *pager.Tracker) Proposals {
	return Proposals{svc: svc, tracker: tracker}
}

func parseStates(raw string) ([]types.ProposalState, error) {
	var out []types.ProposalState
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		s, err := types.ParseState(part)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func addrParam(c *gin.Context) (types.Address, bool) {
	addr, err := types.ParseAddress(c.Param("addr"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return types.Address{}, false
	}
	return addr, true
}

// writeTagged serves v as JSON with an ETag over the encoded body and
// answers 304 when the client already has it.
func writeTagged(c *gin.Context, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	tag := fmt.Sprintf(`"%016x"`, xxhash.Checksum64(body))
	c.Header("ETag", tag)
	if c.GetHeader("If-None-Match") == tag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// superseded answers 409 when a newer request for the same resource has
// started since tok was issued.
func superseded(c *gin.Context, tok pager.Token) bool {
	if tok.Current() {
		return false
	}
	c.JSON(http.StatusConflict, gin.H{"err": "request superseded", "kind": "superseded"})
	return true
}

// List serves one page of the selected states. A newer list request from
// the same client cancels this one.
func (p Proposals) List(c *gin.Context) {
	states, err := parseStates(c.Query("states"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	sel := pager.NewSelection(states...)
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"err": "page must be a number"})
			return
		}
		sel.Page = n
	}

	ctx, tok := p.tracker.Begin(c.Request.Context(), clientKey(c)+":"+pager.KeyProposals)
	defer tok.Release()
	res, err := p.svc.Browse(ctx, sel)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if superseded(c, tok) {
		return
	}
	writeTagged(c, res)
}

func (p Proposals) Counts(c *gin.Context) {
	ctx, tok := p.tracker.Begin(c.Request.Context(), clientKey(c)+":"+pager.KeyCounts)
	defer tok.Release()
	counts, err := p.svc.Counts(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if superseded(c, tok) {
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (p Proposals) Detail(c *gin.Context) {
	addr, ok := addrParam(c)
	if !ok {
		return
	}
	ctx, tok := p.tracker.Begin(c.Request.Context(), clientKey(c)+":"+pager.CommentsKey(addr))
	defer tok.Release()
	page, err := p.svc.Proposal(ctx, addr)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if superseded(c, tok) {
		return
	}
	writeTagged(c, gin.H{
		"proposal": page.Proposal,
		"bodyHtml": renderHTML(page.Proposal.Body),
		"comments": page.Comments,
	})
}

func (p Proposals) Comments(c *gin.Context) {
	addr, ok := addrParam(c)
	if !ok {
		return
	}
	offset, err := strconv.ParseUint(c.DefaultQuery("offset", "0"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "offset must be a non-negative number"})
		return
	}
	ctx, tok := p.tracker.Begin(c.Request.Context(), clientKey(c)+":"+pager.CommentsKey(addr))
	defer tok.Release()
	feed, err := p.svc.MoreComments(ctx, addr, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if superseded(c, tok) {
		return
	}
	c.JSON(http.StatusOK, feed)
}

func (p Proposals) Preview(c *gin.Context) {
	var req struct {
		Markdown string `json:"markdown"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"html": renderHTML(req.Markdown)})
}

func (p Proposals) Create(c *gin.Context) {
	var req struct {
		Title    string `json:"title" binding:"required"`
		Body     string `json:"body"`
		BodyHTML string `json:"bodyHtml"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	tx, err := p.svc.Submit(c.Request.Context(), actor(c), service.SubmitInput{Title: req.Title, Body: req.Body, BodyHTML: req.BodyHTML})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"tx": tx.Hash.Hex()})
}

func (p Proposals) SetWindow(c *gin.Context) {
	addr, ok := addrParam(c)
	if !ok {
		return
	}
	var req struct {
		VoteStart uint64 `json:"voteStart"`
		VoteEnd   uint64 `json:"voteEnd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	tx, err := p.svc.SetWindow(c.Request.Context(), actor(c), addr, req.VoteStart, req.VoteEnd)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"tx": tx.Hash.Hex()})
}

func (p Proposals) Activate(c *gin.Context) {
	addr, ok := addrParam(c)
	if !ok {
		return
	}
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	res, err := p.svc.Activate(c.Request.Context(), actor(c), addr, *req.Active)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (p Proposals) Sync(c *gin.Context) {
	addr, ok := addrParam(c)
	if !ok {
		return
	}
	tx, err := p.svc.Sync(c.Request.Context(), actor(c), addr)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"tx": tx.Hash.Hex()})
}

func (p Proposals) AddComment(c *gin.Context) {
	addr, ok := addrParam(c)
	if !ok {
		return
	}
	var req struct {
		Content   string `json:"content"`
		Sentiment uint8  `json:"sentiment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	tx, err := p.svc.Comment(c.Request.Context(), actor(c), addr, req.Content, types.Sentiment(req.Sentiment))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"tx": tx.Hash.Hex()})
}
