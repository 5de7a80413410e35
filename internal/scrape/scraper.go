// Package scrape turns the live browser page into an immutable ScrapedPage:
// raw HTML, element trees, an id→xpath map and screenshots.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/voyagerhq/voyager/internal/browser"
	"github.com/voyagerhq/voyager/internal/domain"
	voyagererrors "github.com/voyagerhq/voyager/internal/errors"
)

// maxTrimmedText bounds element text in the trimmed tree handed to the LLM.
const maxTrimmedText = 200

// Scraper produces a ScrapedPage from a browser state. Implementations must
// treat the page as read-only.
type Scraper interface {
	Scrape(ctx context.Context, state browser.Session, url string) (*domain.ScrapedPage, error)
}

// collectElementsJS walks the DOM collecting visible elements with stable
// ids and xpaths. It runs inside the page.
const collectElementsJS = `() => {
	const interactiveTags = new Set(["a", "button", "input", "select", "textarea", "label", "option"]);
	const results = [];
	let counter = 0;

	const xpathFor = (el) => {
		const parts = [];
		for (let node = el; node && node.nodeType === Node.ELEMENT_NODE; node = node.parentNode) {
			let index = 1;
			for (let sib = node.previousElementSibling; sib; sib = sib.previousElementSibling) {
				if (sib.tagName === node.tagName) index++;
			}
			parts.unshift(node.tagName.toLowerCase() + "[" + index + "]");
		}
		return "/" + parts.join("/");
	};

	const isVisible = (el) => {
		const rect = el.getBoundingClientRect();
		if (rect.width === 0 && rect.height === 0) return false;
		const style = window.getComputedStyle(el);
		return style.visibility !== "hidden" && style.display !== "none";
	};

	const walk = (el, depth) => {
		if (!isVisible(el)) return;
		const tag = el.tagName.toLowerCase();
		const attributes = {};
		for (const attr of el.attributes) {
			attributes[attr.name] = attr.value;
		}
		const id = String(counter++);
		results.push({
			id: id,
			tag: tag,
			text: (el.innerText || el.value || "").trim(),
			attributes: attributes,
			xpath: xpathFor(el),
			interactable: interactiveTags.has(tag) || el.onclick != null ||
				el.getAttribute("role") === "button" || el.tabIndex >= 0,
		});
		for (const child of el.children) {
			walk(child, depth + 1);
		}
	};

	walk(document.body, 0);
	return results;
}`

// scrapedElement mirrors the JSON emitted by collectElementsJS.
type scrapedElement struct {
	ID           string            `json:"id"`
	Tag          string            `json:"tag"`
	Text         string            `json:"text"`
	Attributes   map[string]string `json:"attributes"`
	XPath        string            `json:"xpath"`
	Interactable bool              `json:"interactable"`
}

// PlaywrightScraper implements Scraper by evaluating a DOM walk inside the
// page.
type PlaywrightScraper struct{}

// NewPlaywrightScraper creates the default scraper.
func NewPlaywrightScraper() *PlaywrightScraper {
	return &PlaywrightScraper{}
}

// Scrape snapshots the current page. The url parameter is recorded on the
// snapshot; navigation happened when the browser state was created.
func (s *PlaywrightScraper) Scrape(ctx context.Context, state browser.Session, url string) (*domain.ScrapedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page := state.Page()
	if page == nil {
		return nil, voyagererrors.ErrBrowserStateMissingPage
	}

	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("playwright: content: %w", err)
	}

	raw, err := page.Evaluate(collectElementsJS)
	if err != nil {
		return nil, fmt.Errorf("playwright: collect elements: %w", err)
	}
	elements, err := decodeElements(raw)
	if err != nil {
		return nil, err
	}

	screenshot, err := page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("playwright: screenshot: %w", err)
	}

	tree := make([]domain.Element, 0, len(elements))
	trimmed := make([]domain.Element, 0, len(elements))
	idToXPath := make(map[string]string, len(elements))
	for _, el := range elements {
		idToXPath[el.ID] = el.XPath
		node := domain.Element{
			ID:           el.ID,
			Tag:          el.Tag,
			Text:         el.Text,
			Attributes:   el.Attributes,
			Interactable: el.Interactable,
		}
		tree = append(tree, node)
		if el.Interactable {
			trimmedNode := node
			if len(trimmedNode.Text) > maxTrimmedText {
				trimmedNode.Text = trimmedNode.Text[:maxTrimmedText]
			}
			trimmedNode.Attributes = trimAttributes(trimmedNode.Attributes)
			trimmed = append(trimmed, trimmedNode)
		}
	}

	pageURL := url
	if current := state.CurrentURL(); current != "" {
		pageURL = current
	}

	return &domain.ScrapedPage{
		URL:                pageURL,
		HTML:               html,
		ElementTree:        tree,
		ElementTreeTrimmed: trimmed,
		IDToXPath:          idToXPath,
		Screenshots:        [][]byte{screenshot},
	}, nil
}

// decodeElements converts the Evaluate result back through JSON into typed
// elements.
func decodeElements(raw any) ([]scrapedElement, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scraped elements: %w", err)
	}
	var elements []scrapedElement
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, fmt.Errorf("failed to decode scraped elements: %w", err)
	}
	return elements, nil
}

// trimAttributes keeps only the attributes the model needs to identify an
// element.
func trimAttributes(attributes map[string]string) map[string]string {
	if len(attributes) == 0 {
		return nil
	}
	kept := map[string]bool{
		"id": true, "name": true, "type": true, "placeholder": true,
		"aria-label": true, "role": true, "value": true, "href": true,
		"title": true, "alt": true,
	}
	trimmed := make(map[string]string)
	for key, value := range attributes {
		if kept[key] {
			trimmed[key] = value
		}
	}
	if len(trimmed) == 0 {
		return nil
	}
	return trimmed
}
