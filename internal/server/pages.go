package server

import (
	"github.com/gofiber/fiber/v2"

	"autokool/internal/checkout"
)

const siteURL = "https://viktorijaautokool.ee"

// Page describes which front-end view a route renders. The markup itself is
// not produced here.
type Page struct {
	Route     string `json:"route"`
	Component string `json:"component"`
	Title     string `json:"title"`
	URL       string `json:"url"`
}

// Course is the structured-data block of the checkout page.
type Course struct {
	Name     string            `json:"name"`
	Category checkout.Category `json:"category"`
	Provider string            `json:"provider"`
	Price    checkout.Price    `json:"price"`
	URL      string            `json:"url"`
}

type PageDescriptor struct {
	Page
	Course *Course `json:"course,omitempty"`
}

// the first entry is also the fallback for unknown paths
var pages = []Page{
	{Route: "/", Component: "MarketingPage", Title: "Viktorija Autokool Nõmme", URL: siteURL + "/"},
	{Route: "/features", Component: "Features", Title: "Features", URL: siteURL + "/features"},
	{Route: "/about", Component: "About", Title: "About us", URL: siteURL + "/about"},
	{Route: "/checkout", Component: "CheckoutPage", Title: "Place your order", URL: siteURL + "/checkout"},
}

var courseNames = map[checkout.Category]string{
	checkout.CategoryA: "Category A motorcycle course",
	checkout.CategoryB: "Category B driving course",
	checkout.CategoryC: "Final course",
}

func (s *Server) page(p Page) fiber.Handler {
	return func(c *fiber.Ctx) error {
		desc := PageDescriptor{Page: p}
		if p.Route == "/checkout" {
			desc.Course = checkoutCourse(checkout.ParseCategory(c.Query("category")))
			if desc.Course != nil {
				desc.Title = desc.Course.Name
			}
		}
		return c.JSON(desc)
	}
}

func checkoutCourse(category checkout.Category) *Course {
	if !category.Known() {
		return nil
	}
	return &Course{
		Name:     courseNames[category],
		Category: category,
		Provider: "Viktorija Autokool Nõmme",
		Price:    checkout.ResolvePrice(category, checkout.TransmissionManual),
		URL:      siteURL + "/checkout?category=" + category.String(),
	}
}
