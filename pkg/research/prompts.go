package research

import (
	"fmt"
	"strings"
	"time"
)

// todayStr formats a date for prompts, e.g. "Mon Jan 15, 2024".
func todayStr(now time.Time) string {
	return fmt.Sprintf("%s %s %d, %d", now.Format("Mon"), now.Format("Jan"), now.Day(), now.Year())
}

const clarifyPrompt = `These are the messages that have been exchanged so far from the user asking for research:
<Messages>
%s
</Messages>

Today's date is %s.

Assess whether you need to ask a clarifying question, or if the user has already provided enough information for you to start research.
IMPORTANT: If you can see in the messages history that you have already asked a clarifying question, you almost always do not need to ask another one. Only ask another question if ABSOLUTELY NECESSARY.

If there are acronyms, abbreviations, or unknown terms, ask the user to clarify.
If you need to ask a question, follow these guidelines:
- Be concise while gathering all necessary information
- Make sure to gather all the information needed to carry out the research task in a concise, well-structured manner.
- Use bullet points or numbered lists if appropriate for clarity.
- Don't ask for unnecessary information, or information that the user has already provided.

If you need to ask a clarifying question, set need_clarification to true and provide the question.
If you do not need to ask a clarifying question, set need_clarification to false and provide a verification message that you will now begin research.`

const briefPrompt = `You will be given a set of messages that have been exchanged so far between yourself and the user.
Your job is to translate these messages into a more detailed and concrete research question that will be used to guide the research.

The messages that have been exchanged so far between yourself and the user are:
<Messages>
%s
</Messages>

Today's date is %s.

Guidelines:
1. Maximize Specificity and Detail - include all known user preferences and explicitly list key attributes or dimensions to consider.
2. Fill in Unstated But Necessary Dimensions as Open-Ended - if certain attributes are essential but not provided, state that they are open-ended.
3. Avoid Unwarranted Assumptions - if the user has not provided a particular detail, do not invent one.
4. Use the First Person - phrase the request from the perspective of the user.
5. Sources - prefer primary and official sources where the question suggests them.

Return a single research question that will guide the research.`

const planPrompt = `You are a research supervisor. Your job is to decompose a research brief into independent research sub-tasks and decide when enough research has been done.

The research brief is:
<Brief>
%s
</Brief>
%s
Today's date is %s.

Guidelines:
- Each sub-task must be a standalone topic with enough context for an independent researcher who sees nothing else.
- Bias towards the fewest sub-tasks that cover the brief; do not split a simple question.
- Do not exceed %d sub-tasks in one round.
- If the findings so far already answer the brief comprehensively, set done to true and return no sub-tasks.`

const researcherPrompt = `You are a research assistant conducting deep research on the user's topic. Use the tools provided to gather information and answer the question in detail.

Today's date is %s.

<Task>
Your job is to use tools to gather information about the user's topic.
You can use any of the tools provided to you to find resources that can help answer the research question. You can call these tools in series or in parallel, your research is conducted in a tool-calling loop.
</Task>

<Instructions>
Think like a human researcher with limited time. Follow these steps:
1. Read the topic carefully - What specific information does it ask for?
2. Start with broader searches - Use broad, comprehensive queries first.
3. After each search, pause and assess - Do I have enough to answer? What's still missing?
4. Execute narrower searches as you gather information - Fill in the gaps.
5. Stop when you can answer confidently - Don't keep searching for perfection.
</Instructions>

<Hard Limits>
- Stop when you can answer the question comprehensively.
- Stop if your last two searches returned substantially similar information.
- Call %s when you have sufficient findings.
</Hard Limits>

<Show Your Thinking>
After each search, use %s to analyze the results:
- What key information did I find?
- What's missing?
- Do I have enough to answer comprehensively?
</Show Your Thinking>`

const compressPrompt = `You are a research assistant that has conducted research by calling tools and searching the web. Your job is now to clean up the findings, preserving ALL relevant statements and information gathered.

The research topic was:
<Topic>
%s
</Topic>

The raw research transcript follows:
<Transcript>
%s
</Transcript>

Today's date is %s.

Guidelines:
1. Your output should be fully comprehensive: repeat all facts and information relevant to the topic verbatim where possible.
2. This report can be as long as necessary; do not lose information for the sake of brevity.
3. Include inline citations of sources (URLs) for each finding.
4. List any concrete questions that remain unanswered as open gaps; leave open_gaps empty when the topic is fully covered.`

const reportPrompt = `Based on all the research conducted, create a comprehensive, well-structured answer to the overall research brief:
<Research Brief>
%s
</Research Brief>

Today's date is %s.

Here are the findings from the research that was conducted:
<Findings>
%s
</Findings>

Please create a detailed answer to the overall research brief that:
1. Is well-organized with proper headings (# for title, ## for sections, ### for subsections)
2. Includes specific facts and insights from the research
3. References relevant sources using [Title](URL) format
4. Provides a balanced, thorough analysis. Be as comprehensive as possible, and include all information that is relevant to the overall research question.
5. Includes a "Sources" section at the end with all referenced links

Write in clear markdown with proper structure and include source references where appropriate.`

func renderMessages(messages []string) string {
	return strings.Join(messages, "\n")
}

func findingsSection(notes []string) string {
	if len(notes) == 0 {
		return ""
	}
	return fmt.Sprintf("\nFindings from the research conducted so far:\n<Findings>\n%s\n</Findings>\n", strings.Join(notes, "\n\n"))
}
