package core

// Suggested category labels offered to clients. Categories are not restricted
// to these lists; the server only normalizes them.
var (
	ExpenseCategories = []string{
		"Housing", "Rent/Mortgage", "Property Tax", "Repairs & Maintenance",
		"Food & Dining", "Groceries", "Restaurants/Takeout", "Coffee/Drinks",
		"Transportation", "Car Payment/Lease", "Gas/Fuel", "Public Transit",
		"Utilities", "Entertainment", "Subscriptions",
		"Debt/Loan", "Credit Card Payment", "Student Loan",
		"Insurance", "Healthcare", "Dental/Vision", "Medication/Pharmacy",
		"Education", "Personal Care", "Clothing/Apparel", "Grooming/Haircuts",
		"Savings & Investing", "Taxes", "Gifts & Donations", "Pet Care",
		"Childcare", "Travel", "Fees & Charges", "Office Supplies/Tech",
		"Miscellaneous", "Other Expense",
	}

	IncomeCategories = []string{
		"Salary", "Freelance", "Investment", "Dividends/Interest", "Capital Gains",
		"Gift", "Refund", "Bonus", "Rental Income", "Side Hustle",
		"Government Benefits", "Reimbursement", "Other Income",
	}
)

// SuggestedCategories returns copies of the suggestion lists keyed by type.
func SuggestedCategories() map[TxnType][]string {
	return map[TxnType][]string{
		Expense: append([]string(nil), ExpenseCategories...),
		Income:  append([]string(nil), IncomeCategories...),
	}
}
