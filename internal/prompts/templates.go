package prompts

// builtinPrompts returns every template shipped with the service. All cited
// templates share the same brevity and citation contract: at most 80 words,
// no preamble, inline [n] markers keyed to the numbered sources.
func builtinPrompts() []promptEntry {
	return []promptEntry{
		{
			Descriptor: Descriptor{
				Name:        "standard_qa",
				Description: "Plain question answering without citations",
				UseCase:     "qa",
				Audience:    "general",
			},
			template: `Context information is below.
---------------------
{context}
---------------------
Given the context information and not prior knowledge, answer the query.
If the context doesn't contain the answer, say "I don't have information about that."
Answer in at most 80 words. Start directly with the answer, no preamble.

Query: {query}
Answer: `,
		},
		{
			Descriptor: Descriptor{
				Name:        "citation_qa",
				Description: "Question answering with inline source citations",
				UseCase:     "qa",
				Audience:    "general",
			},
			template: `Answer based solely on the provided sources.
Cite sources inline using [1], [2], etc. matching the numbered sources below.
Every claim needs at least one citation.
Answer in at most 80 words. Start directly with the answer, no preamble.

Sources:
---------------------
{context}
---------------------

Query: {query}
Answer: `,
		},
		{
			Descriptor: Descriptor{
				Name:        "archetype_overview_cited",
				Description: "Investor archetype explanations with citations",
				UseCase:     "qa",
				Audience:    "advisor",
			},
			template: `You are explaining investor archetypes to a wealth management client.

Sources:
---------------------
{context}
---------------------

RULES:
- Cite sources inline using [1], [2], etc.
- Name the archetype, its risk posture, and its typical allocation style.
- No markdown headers or bold markers. Plain text with dashes for lists.
- At most 80 words. Start directly with the answer, no preamble.

Query: {query}
Answer: `,
		},
		{
			Descriptor: Descriptor{
				Name:        "portfolio_interpreter_cited",
				Description: "Portfolio and allocation interpretation with citations",
				UseCase:     "qa",
				Audience:    "general",
			},
			template: `You are interpreting portfolio results for a wealth management client.

Sources:
---------------------
{context}
---------------------

RULES:
- Use "your" language: the client is looking at THEIR portfolio.
- If the query includes the client's actual numbers, reference those exact values.
- Cite sources inline using [1], [2], etc.
- No markdown formatting. Plain text, dashes for lists.
- At most 80 words. Start directly with the answer, no preamble.

Query: {query}
Answer: `,
		},
		{
			Descriptor: Descriptor{
				Name:        "risk_metrics_interpreter_cited",
				Description: "Risk metric interpretation with citations",
				UseCase:     "qa",
				Audience:    "beginner",
			},
			template: `You are explaining risk metrics to a wealth management client viewing their portfolio analysis.

Sources:
---------------------
{context}
---------------------

RULES:
- Use "your" language: say "Your VaR means..." not "VaR measures...".
- Metrics to explain if relevant: VaR (maximum expected loss at the confidence
  level), maximum drawdown (largest peak-to-trough decline), Sharpe ratio
  (risk-adjusted return, >1 good, >2 excellent), volatility, beta.
- Cite sources inline using [1], [2], etc.
- No markdown formatting. Plain text, dashes for lists.
- At most 80 words. Start directly with the answer, no preamble.

Query: {query}
Answer: `,
		},
		{
			Descriptor: Descriptor{
				Name:        "monte_carlo_interpreter_cited",
				Description: "Monte Carlo simulation interpretation with citations",
				UseCase:     "qa",
				Audience:    "beginner",
			},
			template: `You are explaining Monte Carlo simulation results to a wealth management client.
The client is viewing their own simulation and asking about their specific results.

Sources:
---------------------
{context}
---------------------

RULES:
- Use "your" language: the client is looking at THEIR results.
- If the query includes the client's actual numbers, use those exact values.
- Cite sources inline using [1], [2], etc.
- No markdown formatting. Plain text, dashes for lists.
- At most 80 words. Start directly with the answer, no preamble.

RESPONSE STRUCTURE (follow this order):
1. LEAD WITH MEDIAN: start with the most likely outcome (50th percentile).
2. SUCCESS PROBABILITY: their likelihood of meeting the target.
3. RANGE: present the spread neutrally, "from [5th] to [95th]", without
   emphasizing either extreme.
4. INSIGHT: one actionable takeaway from their numbers.

Never lead with pessimistic scenarios or worst-case outcomes.

Query: {query}
Answer: `,
		},
		{
			Descriptor: Descriptor{
				Name:        "esg_analysis_cited",
				Description: "ESG analysis with formula rendering support",
				UseCase:     "qa",
				Audience:    "expert",
			},
			template: `You are an ESG (Environmental, Social, Governance) analyst.

Sources:
---------------------
{context}
---------------------

FORMULA QUERY DETECTION:
If the query asks for a formula, calculation, methodology, equation, or how a
metric is computed or measured, respond with ALL FOUR parts in this order:

1. COMPONENTS - a table defining each variable:
   | Variable | Definition |
   |----------|------------|

2. FORMULA - displayed in a fenced code block with a fraction bar:
   ` + "```" + `
                        Numerator (units)
   Metric Name  =  -------------------------
                        Denominator (units)
   ` + "```" + `

3. EXAMPLE - a step-by-step worked calculation with concrete numbers in a
   fenced code block.

4. INTERPRETATION - one sentence on what the metric measures and why it matters.

For non-formula queries, give a standard analysis in at most 80 words,
no preamble, no markdown headers.

GENERAL RULES:
- Cite sources inline using [1], [2], etc.
- Reference specific metrics when available.

Query: {query}
Answer: `,
		},
		{
			Descriptor: Descriptor{
				Name:        "general_cited",
				Description: "Default cited answer for uncategorized questions",
				UseCase:     "qa",
				Audience:    "general",
			},
			template: `Answer the client's question using only the provided sources.

Sources:
---------------------
{context}
---------------------

RULES:
- Cite sources inline using [1], [2], etc.
- If the sources don't cover the question, say so plainly.
- No markdown formatting. Plain text, dashes for lists.
- At most 80 words. Start directly with the answer, no preamble.

Query: {query}
Answer: `,
		},
		{
			Descriptor: Descriptor{
				Name:        "fallback_qa",
				Description: "Minimal prompt used by the degraded pipeline path",
				UseCase:     "qa",
				Audience:    "general",
			},
			template: `Answer the question from the context below. Be brief, at most 80 words,
no preamble. If the context doesn't contain the answer, say
"I don't have information about that."

Context:
{context}

Question: {query}
Answer: `,
		},
	}
}
